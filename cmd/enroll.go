package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/app"
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/pkg/logger"
)

var errQuit = errors.New("enrollment abandoned")

// session is the part of the controller the terminal flow drives.
type session interface {
	SubmitCode(ctx context.Context, raw string) error
	SubmitDeepLink(ctx context.Context, link string) error
	Confirm(ctx context.Context) (enrollment.Result, error)
	Retake(ctx context.Context) error
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
	State() app.PipelineState
	Guidance() *guidance.Board
}

var (
	enrollCode string
	enrollLink string
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Run one capture session in the terminal",
	Long: `enroll runs a single capture session without the kiosk page: guidance is
printed as it changes and, once a blink freezes the photo, you are asked to
confirm, retake or quit. Logs go to stderr.`,
	Annotations: map[string]string{annotationLogs: logsToStderr},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if enrollCode == "" && enrollLink == "" {
			return errors.New("one of --code or --link is required")
		}
		ctrl := newController(cfg, logger.Get())
		return runEnroll(cmd.Context(), ctrl, enrollCode, enrollLink, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	enrollCmd.Flags().StringVar(&enrollCode, "code", "", "invite code")
	enrollCmd.Flags().StringVar(&enrollLink, "link", "", "invitation link carrying the invite code")
	rootCmd.AddCommand(enrollCmd)
}

// runEnroll drives one session to Done, or until the user quits or the
// session fails.
func runEnroll(ctx context.Context, s session, code, link string, in io.Reader, out io.Writer) (err error) {
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	updates, cancel := s.Guidance().Subscribe()
	defer cancel()
	lines := readLines(in)

	if link != "" {
		err = s.SubmitDeepLink(ctx, link)
	} else {
		err = s.SubmitCode(ctx, code)
	}
	if err != nil {
		fmt.Fprintln(out, s.Guidance().Current().Text)
		return err
	}

	var lastSeq uint64
	for {
		if err := waitForReview(ctx, s, updates, out, &lastSeq); err != nil {
			return err
		}
		done, err := review(ctx, s, lines, out)
		if done || err != nil {
			return err
		}
	}
}

// review prompts until the photo is submitted, retaken or abandoned. done is
// false after a retake.
func review(ctx context.Context, s session, lines <-chan string, out io.Writer) (done bool, err error) {
	for {
		fmt.Fprint(out, "Type confirm, retake or quit: ")
		var answer string
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return true, errQuit
			}
			answer = strings.ToLower(strings.TrimSpace(line))
		}

		switch answer {
		case "confirm", "c":
			res, err := s.Confirm(ctx)
			if err != nil {
				// the photo is kept; the user may retry or retake
				fmt.Fprintf(out, "Submission failed: %s\n", s.State().LastError)
				continue
			}
			msg := res.Message
			if msg == "" {
				msg = s.Guidance().Current().Text
			}
			fmt.Fprintln(out, msg)
			return true, nil
		case "retake", "r":
			return false, s.Retake(ctx)
		case "quit", "q":
			_ = s.Reset(ctx)
			return true, errQuit
		}
	}
}

// waitForReview prints guidance until the session freezes or fails.
func waitForReview(ctx context.Context, s session, updates <-chan guidance.Message, out io.Writer, lastSeq *uint64) error {
	for {
		st := s.State()
		switch st.State {
		case app.StateFrozen:
			return nil
		case app.StateFailed:
			return fmt.Errorf("capture failed (%s): %s", st.ErrorKind, st.LastError)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-updates:
			if !ok {
				return errQuit
			}
			if m.Seq != *lastSeq {
				*lastSeq = m.Seq
				fmt.Fprintln(out, m.Text)
			}
		}
	}
}

func readLines(in io.Reader) <-chan string {
	if in == nil {
		in = os.Stdin
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}
