package landmark

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/okian/facegate/internal/domain/model"
)

// maxMessage bounds a single protocol frame in either direction.
const maxMessage = 32 << 20

// writeMessage writes payload as [uint32 big-endian length][payload].
func writeMessage(w io.Writer, payload []byte) error {
	if len(payload) > maxMessage {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readMessage reads one length-prefixed payload.
func readMessage(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxMessage {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	_, err := io.ReadFull(r, body)
	return body, err
}

// response is the helper's JSON reply. The first reply after start is the
// load handshake and only carries Ready or Error.
type response struct {
	Ready bool       `json:"ready,omitempty"`
	Error string     `json:"error,omitempty"`
	Faces []wireFace `json:"faces,omitempty"`
}

type wireFace struct {
	Box      []float64    `json:"box"`
	LeftEye  [][2]float64 `json:"left_eye"`
	RightEye [][2]float64 `json:"right_eye"`
	Score    float64      `json:"score,omitempty"`
}

func (w wireFace) toModel() (model.Face, error) {
	var f model.Face
	if len(w.LeftEye) != model.EyePoints || len(w.RightEye) != model.EyePoints {
		return f, fmt.Errorf("%w: want %d eye points, got %d/%d",
			ErrBadResponse, model.EyePoints, len(w.LeftEye), len(w.RightEye))
	}
	copy(f.Box[:], w.Box)
	for i := 0; i < model.EyePoints; i++ {
		f.LeftEye[i] = model.Point{X: w.LeftEye[i][0], Y: w.LeftEye[i][1]}
		f.RightEye[i] = model.Point{X: w.RightEye[i][0], Y: w.RightEye[i][1]}
	}
	f.Score = w.Score
	return f, nil
}
