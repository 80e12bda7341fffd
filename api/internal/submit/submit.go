package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/imageproc"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
)

type Uploader interface {
	// Upload stores one resized JPEG; index is the image's slot (0-3).
	Upload(ctx context.Context, index int, jpeg []byte) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, in types.InterpretationRequest) (types.InterpretationResult, error)
}

type Saver interface {
	SaveReading(ctx context.Context, in models.ReadingInput) (string, error)
}

type Stage string

const (
	StageResized  Stage = "resized"
	StageUploaded Stage = "uploaded"
	StageAnalyzed Stage = "analyzed"
	StageSaved    Stage = "saved"
)

// Progress is called from upload goroutines; index is -1 for whole-request stages.
type Progress func(index int, stage Stage)

type Input struct {
	Images   [][]byte
	Question string
	Symbols  []string
}

// Outcome of a run. When analysis succeeded but saving failed, Result is
// still populated, Saved is false and SaveError says why.
type Outcome struct {
	ReadingID string
	ImageURLs []string
	Result    types.InterpretationResult
	Saved     bool
	SaveError error
}

type Pipeline struct {
	up       Uploader
	an       Analyzer
	sv       Saver
	progress Progress
	log      *zap.Logger
	resize   func([]byte) ([]byte, error)
}

type Option func(*Pipeline)

func WithProgress(p Progress) Option { return func(pl *Pipeline) { pl.progress = p } }

func WithLogger(l *zap.Logger) Option { return func(pl *Pipeline) { pl.log = l } }

func New(up Uploader, an Analyzer, sv Saver, opts ...Option) *Pipeline {
	p := &Pipeline{
		up:       up,
		an:       an,
		sv:       sv,
		progress: func(int, Stage) {},
		log:      zap.NewNop(),
		resize: func(b []byte) ([]byte, error) {
			return imageproc.Resize(b, imageproc.MaxDimension, imageproc.Quality)
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run resizes and uploads every image in parallel, analyzes them, then saves
// the reading. Upload is all-or-nothing: one failed image fails the run.
func (p *Pipeline) Run(ctx context.Context, in Input) (Outcome, error) {
	if len(in.Images) == 0 {
		return Outcome{}, apperr.Invalid("images", "minItems", "add at least one photo of your cup")
	}
	if len(in.Images) > types.MaxImages {
		return Outcome{}, apperr.Invalid("images", "maxItems", fmt.Sprintf("at most %d photos", types.MaxImages))
	}

	urls, err := p.uploadAll(ctx, in.Images)
	if err != nil {
		return Outcome{}, err
	}

	req := types.InterpretationRequest{Images: urls, Question: strings.TrimSpace(in.Question), UserSymbolNames: in.Symbols}
	res, err := p.an.Analyze(ctx, req)
	if err != nil {
		return Outcome{ImageURLs: urls}, fmt.Errorf("analyze: %w", err)
	}
	p.progress(-1, StageAnalyzed)

	out := Outcome{ImageURLs: urls, Result: res}
	id, err := p.sv.SaveReading(ctx, models.ReadingInput{
		ImageURLs:       urls,
		UserQuestion:    req.Question,
		UserSymbolNames: req.UserSymbolNames,
		AIResult:        res,
	})
	if err != nil {
		p.log.Warn("reading not saved", zap.Error(err))
		out.SaveError = err
		return out, nil
	}
	out.ReadingID, out.Saved = id, true
	p.progress(-1, StageSaved)
	return out, nil
}

func (p *Pipeline) uploadAll(ctx context.Context, images [][]byte) ([]string, error) {
	urls := make([]string, len(images))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			jpg, err := p.resize(img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			p.progress(i, StageResized)
			url, err := p.up.Upload(gctx, i, jpg)
			if err != nil {
				return fmt.Errorf("upload image %d: %w", i+1, err)
			}
			mu.Lock()
			urls[i] = url
			mu.Unlock()
			p.progress(i, StageUploaded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

const (
	MsgQuota   = "The reading service is busy right now. Please try again in a few minutes."
	MsgFormat  = "One of the photos could not be read. Please use a JPEG, PNG or WebP image."
	MsgModel   = "The reading came back garbled. Please try again."
	MsgGeneric = "Something went wrong while reading your cup. Please try again."
)

// ClassifyError turns a pipeline error into a message for the user.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.Field == "images" {
		return ve.Detail
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "quota", "429", "resource exhausted", "resource_exhausted"):
		return MsgQuota
	case containsAny(msg, "format", "unsupported", "mime"):
		return MsgFormat
	case containsAny(msg, "schema", "json", "parse"):
		return MsgModel
	default:
		return MsgGeneric
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
