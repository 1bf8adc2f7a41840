package roster

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/validation"
)

// UploadAnswerKey stores the answer key for a post, replacing the file
// and metadata of any previous key for that post.
func (s *Service) UploadAnswerKey(ctx context.Context, rawPost, fileName string, r io.Reader, publish bool) (*model.AnswerKey, error) {
	post, err := validation.AnswerKeyPost(rawPost)
	if err != nil {
		return nil, err
	}
	ext, err := validation.ScanExt(fileName)
	if err != nil {
		return nil, err
	}
	data, err := readLimited(r, s.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	if data, err = scan.Prepare(data, ext, scan.Options{}); err != nil {
		return nil, err
	}

	old, err := s.store.GetAnswerKey(ctx, post)
	if err != nil {
		return nil, model.Storage("find answer key", err)
	}
	var oldRel string
	if old != nil {
		oldRel = old.FilePath
	}
	k := model.AnswerKey{
		Post:       post,
		FileName:   path.Base(strings.ReplaceAll(fileName, `\`, "/")),
		Published:  publish,
		UploadedAt: s.now().UTC(),
	}
	k.FilePath, err = s.replaceFile(filestore.AnswerKeys, filestore.Name("answer_key", string(post), ext), oldRel, data, func(rel string) error {
		k.FilePath = rel
		return s.store.UpsertAnswerKey(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("answer key uploaded", "post", post, "published", publish)
	return &k, nil
}

// SetAnswerKeyPublished publishes or hides one answer key.
func (s *Service) SetAnswerKeyPublished(ctx context.Context, rawPost string, published bool) error {
	post, err := validation.AnswerKeyPost(rawPost)
	if err != nil {
		return err
	}
	if err := s.store.SetAnswerKeyPublished(ctx, post, published); err != nil {
		return model.Storage("publish answer key", err)
	}
	s.logger.Info("answer key visibility changed", "post", post, "published", published)
	return nil
}

// PublishAllAnswerKeys publishes or hides every answer key and returns
// how many keys exist.
func (s *Service) PublishAllAnswerKeys(ctx context.Context, published bool) (int64, error) {
	n, err := s.store.SetAllAnswerKeysPublished(ctx, published)
	if err != nil {
		return 0, model.Storage("publish answer keys", err)
	}
	s.logger.Info("all answer keys visibility changed", "count", n, "published", published)
	return n, nil
}

// DeleteAnswerKey removes the answer key record and file for a post.
func (s *Service) DeleteAnswerKey(ctx context.Context, rawPost string) error {
	post, err := validation.AnswerKeyPost(rawPost)
	if err != nil {
		return err
	}
	k, err := s.store.GetAnswerKey(ctx, post)
	if err != nil {
		return model.Storage("find answer key", err)
	}
	if k == nil {
		return model.NotFound("answer key", string(post))
	}
	if err := s.store.DeleteAnswerKey(ctx, post); err != nil {
		return model.Storage("delete answer key", err)
	}
	if err := s.files.Remove(k.FilePath); err != nil {
		s.logger.Warn("failed to remove answer key file", "post", post, "path", k.FilePath, "error", err)
	}
	s.logger.Info("answer key deleted", "post", post)
	return nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, model.Invalid("file", "is larger than %d bytes", limit)
	}
	return data, nil
}
