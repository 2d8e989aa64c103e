package landmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/okian/facegate/internal/domain/model"
)

// DetectFunc finds faces in one JPEG-encoded frame.
type DetectFunc func(jpeg []byte) ([]model.Face, error)

// Serve runs the helper side of the protocol: it answers the load handshake
// with loadErr (nil means ready), then replies to each request on in until in
// is closed. Detection errors are reported to the client, not returned.
func Serve(in io.Reader, out io.Writer, loadErr error, detect DetectFunc) error {
	if loadErr != nil {
		if err := reply(out, response{Error: loadErr.Error()}); err != nil {
			return err
		}
		return loadErr
	}
	if err := reply(out, response{Ready: true}); err != nil {
		return err
	}
	for {
		req, err := readMessage(in)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		faces, err := detect(req)
		resp := response{Faces: make([]wireFace, 0, len(faces))}
		if err != nil {
			resp = response{Error: err.Error()}
		}
		for _, f := range faces {
			resp.Faces = append(resp.Faces, fromModel(f))
		}
		if err := reply(out, resp); err != nil {
			return err
		}
	}
}

func reply(out io.Writer, resp response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return writeMessage(out, b)
}

func fromModel(f model.Face) wireFace {
	w := wireFace{
		Box:      f.Box[:],
		LeftEye:  make([][2]float64, model.EyePoints),
		RightEye: make([][2]float64, model.EyePoints),
		Score:    f.Score,
	}
	for i := 0; i < model.EyePoints; i++ {
		w.LeftEye[i] = [2]float64{f.LeftEye[i].X, f.LeftEye[i].Y}
		w.RightEye[i] = [2]float64{f.RightEye[i].X, f.RightEye[i].Y}
	}
	return w
}
