package roster

import (
	"bytes"
	"path"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/model"
)

// replaceFile stores data as cat/name, records the new path with save and
// then removes the file at oldRel. When save fails the previous file is
// back at oldRel and the new one is gone, even if both share a name.
func (s *Service) replaceFile(cat filestore.Category, name, oldRel string, data []byte, save func(rel string) error) (string, error) {
	var stash *filestore.Stash
	if oldRel != "" && oldRel == path.Join(string(cat), name) {
		var err error
		if stash, err = s.files.Stash(oldRel); err != nil {
			return "", model.Storage("stash "+oldRel, err)
		}
	}

	rel, err := s.files.Put(cat, name, bytes.NewReader(data))
	if err != nil {
		s.restore(stash)
		return "", model.Storage("store "+string(cat)+" file", err)
	}
	if err := save(rel); err != nil {
		if stash != nil {
			s.restore(stash)
		} else {
			_ = s.files.Remove(rel)
		}
		return "", model.Storage("record "+rel, err)
	}

	if stash != nil {
		err = stash.Drop()
	} else {
		err = s.files.Remove(oldRel)
	}
	if err != nil {
		s.logger.Warn("failed to remove previous file", "path", oldRel, "error", err)
	}
	return rel, nil
}

func (s *Service) restore(stash *filestore.Stash) {
	if err := stash.Restore(); err != nil {
		s.logger.Error("failed to restore previous file", "error", err)
	}
}
