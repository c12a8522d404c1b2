package kb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

var datatypeURLs = map[string]string{
	"commonsMedia": "https://upload.wikimedia.org/wikipedia/commons",
}

// ImageURL returns the upload URL of a Commons file. The path is derived from the
// md5 of the underscored file name.
func ImageURL(filename, datatype string) (string, error) {
	base, ok := datatypeURLs[datatype]
	if !ok {
		return "", fmt.Errorf("unsupported image datatype %q", datatype)
	}
	name := strings.ReplaceAll(filename, " ", "_")
	sum := md5.Sum([]byte(name))
	digest := hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s/%s/%s/%s", base, digest[:1], digest[:2], name), nil
}

// ImageResolver turns identifiers into image URLs using their P18 claim.
type ImageResolver struct {
	fetcher Fetcher
}

// NewImageResolver creates an image resolver
func NewImageResolver(fetcher Fetcher) *ImageResolver {
	return &ImageResolver{fetcher: fetcher}
}

// Resolve returns the image URL of qid. It fails with NotFoundError when the
// identifier is unknown or has no image claim.
func (r *ImageResolver) Resolve(ctx context.Context, qid string) (string, error) {
	if qid == "" || qid == types.NIL {
		return "", types.NewNotFoundError(qid)
	}
	record, err := r.fetcher.Fetch(ctx, qid)
	if err != nil {
		return "", err
	}
	datatype, filename, err := record.FirstString(types.PropertyImage)
	if err != nil {
		return "", err
	}
	return ImageURL(filename, datatype)
}

// ImageSource returns the image URL of an identifier.
type ImageSource interface {
	Resolve(ctx context.Context, qid string) (string, error)
}

// ResolveImages maps each annotation with a known identifier to its image URL,
// looking up to workers identifiers at a time. Annotations without an image are
// left out; other lookup failures are logged and left out too.
func ResolveImages(ctx context.Context, src ImageSource, base *Base, annotations []string, workers int, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(annotations))
	for _, name := range annotations {
		if base.QID(name) != types.NIL {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	pool := utils.NewWorkerPool(workers, func(ctx context.Context, annotation string) (string, error) {
		return src.Resolve(ctx, base.QID(annotation))
	})
	urls, errs := pool.ProcessItems(ctx, names)

	images := make(map[string]string, len(names))
	for i, name := range names {
		switch {
		case errs[i] == nil:
			images[name] = urls[i]
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(errs[i], types.ErrNotFound):
		default:
			logger.Warn("failed to resolve image", "annotation", name, "error", errs[i])
		}
	}
	return images, nil
}
