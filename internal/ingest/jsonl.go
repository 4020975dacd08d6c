package ingest

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/kalambet/reviewlens/internal/storage"
)

// maxLineBytes bounds a single JSONL record; metadata lines with long
// descriptions run to several hundred kilobytes.
const maxLineBytes = 16 << 20

type reviewLine struct {
	Rating      float64 `json:"rating"`
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	ASIN        string  `json:"asin"`
	ParentASIN  string  `json:"parent_asin"`
	Timestamp   int64   `json:"timestamp"`
	HelpfulVote int     `json:"helpful_vote"`
}

type imageLine struct {
	Thumb string `json:"thumb"`
	Large string `json:"large"`
	HiRes string `json:"hi_res"`
}

type metaLine struct {
	ParentASIN    string      `json:"parent_asin"`
	Title         string      `json:"title"`
	MainCategory  string      `json:"main_category"`
	AverageRating float64     `json:"average_rating"`
	RatingNumber  int         `json:"rating_number"`
	Store         string      `json:"store"`
	Images        []imageLine `json:"images"`
}

// ReadReviews decodes one review per line from r. Blank lines are skipped.
func ReadReviews(ctx context.Context, r io.Reader) ([]storage.Review, error) {
	var out []storage.Review
	err := eachLine(ctx, r, func(n int, line []byte) error {
		var rl reviewLine
		if err := json.Unmarshal(line, &rl); err != nil {
			return fmt.Errorf("review line %d: %w", n, err)
		}
		out = append(out, storage.Review{
			ParentASIN:  rl.ParentASIN,
			ASIN:        rl.ASIN,
			Rating:      int(math.Round(rl.Rating)),
			Title:       rl.Title,
			Text:        rl.Text,
			Timestamp:   rl.Timestamp,
			HelpfulVote: rl.HelpfulVote,
		})
		return nil
	})
	return out, err
}

// ReadMeta decodes one product per line from r, keeping the first record of
// every parent ASIN. It returns how many duplicate records were skipped.
func ReadMeta(ctx context.Context, r io.Reader) ([]storage.Product, int, error) {
	var out []storage.Product
	seen := make(map[string]bool)
	dups := 0
	err := eachLine(ctx, r, func(n int, line []byte) error {
		var ml metaLine
		if err := json.Unmarshal(line, &ml); err != nil {
			return fmt.Errorf("meta line %d: %w", n, err)
		}
		if seen[ml.ParentASIN] {
			dups++
			return nil
		}
		seen[ml.ParentASIN] = true
		out = append(out, storage.Product{
			ParentASIN:    ml.ParentASIN,
			Title:         ml.Title,
			ImageURL:      imageURL(ml.Images),
			AverageRating: ml.AverageRating,
			RatingNumber:  ml.RatingNumber,
			MainCategory:  ml.MainCategory,
			StoreName:     ml.Store,
		})
		return nil
	})
	return out, dups, err
}

// imageURL picks the first image's large, hi_res or thumb URL, in that order.
func imageURL(images []imageLine) string {
	if len(images) == 0 {
		return ""
	}
	first := images[0]
	switch {
	case first.Large != "":
		return first.Large
	case first.HiRes != "":
		return first.HiRes
	default:
		return first.Thumb
	}
}

func eachLine(ctx context.Context, r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		if n%10000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading line %d: %w", n+1, err)
	}
	return ctx.Err()
}

// openJSONL opens path for reading, transparently decompressing .gz files.
func openJSONL(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.file.Close(); err == nil {
		err = ferr
	}
	return err
}
