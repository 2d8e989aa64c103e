package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/facegate/internal/adapters/landmark"
)

var (
	simPeriod int
	simClosed int
)

var landmarksSimCmd = &cobra.Command{
	Use:   "landmarks-sim",
	Short: "Landmark helper that simulates a blinking subject",
	Long: `landmarks-sim speaks the landmark helper protocol on stdin and file
descriptor 3 and reports a face that blinks every --period frames. Point
landmark_command at it to rehearse the kiosk without a model.`,
	Hidden: true,
	Annotations: map[string]string{
		annotationLogs:   logsToStderr,
		annotationConfig: configSkip,
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		reply := os.NewFile(3, "reply")
		if reply == nil {
			return errors.New("reply descriptor 3 is not open")
		}
		defer reply.Close()
		sim := landmark.NewSimulator(simPeriod, simClosed)
		return landmark.Serve(os.Stdin, reply, nil, sim.Detect)
	},
}

func init() {
	landmarksSimCmd.Flags().IntVar(&simPeriod, "period", 30, "frames between blinks")
	landmarksSimCmd.Flags().IntVar(&simClosed, "closed", 2, "frames the eyes stay closed")
	rootCmd.AddCommand(landmarksSimCmd)
}
