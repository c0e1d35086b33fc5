/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
)

// Scanner walks a media folder and appends its audio files to the playlist.
type Scanner struct {
	store  *Store
	logger zerolog.Logger
}

func NewScanner(store *Store, logger zerolog.Logger) *Scanner {
	return &Scanner{
		store:  store,
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan imports every supported audio file under root, in lexical order.
// Files that fail to decode are logged and skipped. It returns the number
// of tracks added.
func (s *Scanner) Scan(root string) (int, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExtension(filepath.Ext(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	added := 0
	for _, path := range paths {
		duration, err := probeDuration(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping undecodable file")
			continue
		}
		artist, title := splitName(path)
		if _, err := s.store.Append(path, title, artist, duration); err != nil {
			return added, err
		}
		added++
	}
	s.logger.Info().Str("root", root).Int("added", added).Msg("scan complete")
	return added, nil
}

// probeDuration decodes just the stream header to learn the track length.
func probeDuration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(file)
	case ".wav":
		stream, format, err = wav.Decode(file)
	case ".flac":
		stream, format, err = flac.Decode(file)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(file)
	default:
		return 0, fmt.Errorf("unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	return format.SampleRate.D(stream.Len()), nil
}

// splitName derives artist and title from an "Artist - Title.ext" file
// name. Without the separator the whole base name becomes the title.
func splitName(path string) (artist, title string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if artist, title, ok := strings.Cut(base, " - "); ok {
		return strings.TrimSpace(artist), strings.TrimSpace(title)
	}
	return "", base
}

func supportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".flac", ".ogg", ".oga":
		return true
	}
	return false
}
