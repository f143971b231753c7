package migration

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/post-migrate/app/content"
	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/media"
	"github.com/lysyi3m/post-migrate/app/source"
)

// PostMigrator migrates one post and reports the outcome. It never fails
// as a whole; problems are described by the Outcome.
type PostMigrator interface {
	Migrate(ctx context.Context, post source.Post) Outcome
}

var _ PostMigrator = (*Worker)(nil)

type Worker struct {
	classifier    *media.Classifier
	fetcher       media.FetcherInterface
	uploader      media.Uploader
	normalizer    *content.Normalizer
	postRepo      database.PostRepository
	extractor     *content.Extractor
	excerptLength int
	timeout       time.Duration
}

func NewWorker(classifier *media.Classifier, fetcher media.FetcherInterface, uploader media.Uploader,
	normalizer *content.Normalizer, postRepo database.PostRepository, excerptLength int, timeout time.Duration) *Worker {
	return &Worker{
		classifier:    classifier,
		fetcher:       fetcher,
		uploader:      uploader,
		normalizer:    normalizer,
		postRepo:      postRepo,
		excerptLength: excerptLength,
		timeout:       timeout,
	}
}

// WithBodyRecovery makes the worker recover empty bodies from the post
// permalink using extractor.
func (w *Worker) WithBodyRecovery(extractor *content.Extractor) *Worker {
	w.extractor = extractor
	return w
}

func (w *Worker) Migrate(ctx context.Context, post source.Post) Outcome {
	outcome := Outcome{PostID: post.ID}

	if strings.TrimSpace(post.ID) == "" {
		err := &ValidationError{PostID: post.ID, Reason: "post ID is empty"}
		outcome.Reason = err.Error()
		slog.Warn("Post rejected", "title", post.Title, "error", err)
		return outcome
	}

	body := post.Body
	if strings.TrimSpace(body) == "" && w.extractor != nil {
		body = w.recoverBody(ctx, post)
	}

	mapping := media.Mapping{}
	uploaded := make(map[string]string)
	failed := make(map[string]bool)

	for _, candidate := range media.Extract(body) {
		// attribute values may carry entities such as &amp; in query strings
		resolved := html.UnescapeString(candidate)

		switch w.classifier.Classify(resolved) {
		case media.AlreadyMigrated:
			mapping[candidate] = candidate

		case media.NeedsMigration:
			fetchURL := media.FetchURL(resolved)
			if destinationURL, ok := uploaded[fetchURL]; ok {
				mapping[candidate] = destinationURL
				continue
			}
			if failed[fetchURL] {
				mapping[candidate] = candidate
				continue
			}

			destinationURL, err := w.migrateImage(ctx, fetchURL)
			if err != nil {
				outcome.ImagesFailed++
				failed[fetchURL] = true
				mapping[candidate] = candidate
				slog.Warn("Image left unmigrated", "post_id", post.ID, "url", fetchURL,
					"permanent", media.IsPermanent(err), "error", err)
				continue
			}

			outcome.ImagesMigrated++
			uploaded[fetchURL] = destinationURL
			mapping[candidate] = destinationURL
		}
	}

	normalized := w.normalizer.Normalize(body, mapping)

	excerpt := content.PlainText(post.Excerpt)
	if excerpt == "" {
		excerpt = content.Excerpt(normalized, w.excerptLength)
	}

	record := database.Post{
		ID:          post.ID,
		Title:       content.PlainText(post.Title),
		Body:        normalized,
		Excerpt:     excerpt,
		ReadingTime: content.ReadingTimeMinutes(normalized),
		Images:      w.destinationImages(normalized),
		PublishedAt: post.PublishedAt,
	}

	storeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.postRepo.UpsertPost(storeCtx, record); err != nil {
		outcome.Reason = failureReason(err)
		slog.Error("Failed to store post", "post_id", post.ID, "error", err)
		return outcome
	}

	outcome.Success = true

	slog.Info("Post migrated",
		"post_id", post.ID,
		"images_migrated", outcome.ImagesMigrated,
		"images_failed", outcome.ImagesFailed,
		"reading_time", record.ReadingTime)

	return outcome
}

func (w *Worker) migrateImage(ctx context.Context, fetchURL string) (string, error) {
	data, contentType, err := w.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		return "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	destinationURL, err := w.uploader.Upload(uploadCtx, data, w.classifier.SuggestedPath(fetchURL), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	slog.Debug("Image migrated", "url", fetchURL, "destination", destinationURL, "size", len(data))
	return destinationURL, nil
}

func (w *Worker) recoverBody(ctx context.Context, post source.Post) string {
	if post.Link == "" {
		return ""
	}

	data, contentType, err := w.fetcher.Fetch(ctx, post.Link)
	if err != nil {
		slog.Warn("Failed to fetch post page for body recovery", "post_id", post.ID, "url", post.Link, "error", err)
		return ""
	}

	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		slog.Warn("Post page is not HTML", "post_id", post.ID, "url", post.Link, "content_type", contentType)
		return ""
	}

	body, err := w.extractor.Run(data, post.Link)
	if err != nil {
		slog.Warn("Failed to recover post body", "post_id", post.ID, "url", post.Link, "error", err)
		return ""
	}

	return body
}

func (w *Worker) destinationImages(body string) []string {
	images := []string{}
	seen := make(map[string]bool)
	for _, candidate := range media.Extract(body) {
		resolved := html.UnescapeString(candidate)
		if seen[resolved] || w.classifier.Classify(resolved) != media.AlreadyMigrated {
			continue
		}
		seen[resolved] = true
		images = append(images, resolved)
	}
	return images
}

func failureReason(err error) string {
	if errors.Is(err, database.ErrValidation) || errors.Is(err, database.ErrUnavailable) {
		return err.Error()
	}
	return "store unavailable: " + err.Error()
}
