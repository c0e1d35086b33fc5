/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// IntroResolver maps track artists to intro audio files. An intro file is
// any supported audio file whose base name matches the artist, compared
// case-insensitively. The folder comes from the session config on every
// call, so an UpdateConfig that moves it takes effect immediately.
type IntroResolver struct {
	logger zerolog.Logger
}

func NewIntroResolver(logger zerolog.Logger) *IntroResolver {
	return &IntroResolver{
		logger: logger.With().Str("component", "intros").Logger(),
	}
}

// Resolve returns the path of the intro file for artist under folder, or ""
// when there is none. The folder is rescanned on every call so newly
// dropped files are picked up without a restart.
func (r *IntroResolver) Resolve(folder, artist string) string {
	if r == nil || folder == "" || artist == "" {
		return ""
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("folder", folder).Msg("intro folder unreadable")
		}
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !supportedExtension(ext) {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if strings.EqualFold(base, artist) {
			return filepath.Join(folder, name)
		}
	}
	return ""
}

func supportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}
