package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ironsheep/screenwatch/internal/classify"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/similarity"
	"github.com/ironsheep/screenwatch/internal/textnorm"
)

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type compareOutput struct {
	Scores         similarity.Scores `json:"scores"`
	Classification classify.Result   `json:"classification"`
}

func compareAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("compare needs <previous-file> <current-file>")
	}
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}

	prev, err := readText(c.Args().Get(0))
	if err != nil {
		return err
	}
	curr, err := readText(c.Args().Get(1))
	if err != nil {
		return err
	}
	if curr == "" {
		return fmt.Errorf("%s: %w", c.Args().Get(1), textnorm.ErrNoText)
	}

	stages := cfg.Stages()
	scores := similarity.Compare(prev, curr)
	return printJSON(c, compareOutput{
		Scores:         scores,
		Classification: classify.New(stages.Classify).Classify(scores, curr, nil),
	})
}

// readText reads and normalizes a text file. Unusable text reads as "".
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	cleaned, err := textnorm.Clean(string(data))
	if err != nil {
		return "", nil
	}
	return textnorm.Normalize(cleaned), nil
}

type fingerprintOutput struct {
	Path        string             `json:"path"`
	Fingerprint string             `json:"fingerprint"`
	Tone        imaging.ToneResult `json:"tone"`
}

type fingerprintCompareOutput struct {
	Images    [2]fingerprintOutput `json:"images"`
	Hamming   int                  `json:"hamming"`
	Distance  float64              `json:"distance"`
	ToneShift float64              `json:"tone_shift"`
	Verdict   string               `json:"prefilter"`
}

func fingerprintAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return errors.New("fingerprint needs <image> [image2]")
	}
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}

	cache := imaging.NewImageCache()
	fps := make([]imaging.Fingerprint, 0, 2)
	outs := make([]fingerprintOutput, 0, 2)
	for _, path := range c.Args().Slice() {
		img, err := cache.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fp, err := imaging.ComputeFingerprint(img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fps = append(fps, fp)
		outs = append(outs, fingerprintOutput{
			Path:        path,
			Fingerprint: fp.String(),
			Tone:        imaging.DescribeTone(fp.Tone),
		})
	}
	if len(fps) == 1 {
		return printJSON(c, outs[0])
	}

	d := cfg.Stages().Prefilter.Evaluate(&fps[0], fps[1])
	return printJSON(c, fingerprintCompareOutput{
		Images:    [2]fingerprintOutput{outs[0], outs[1]},
		Hamming:   fps[0].Distance(fps[1]),
		Distance:  fps[0].Normalized(fps[1]),
		ToneShift: fps[0].ToneShift(fps[1]),
		Verdict:   string(d.Verdict),
	})
}
