// Package source resolves user input strings (URLs, ids, paths) to media
// references and enumerates playlists, channels and directories.
package source

import (
	"hark/internal/media"
	"hark/internal/model"
)

// Detect returns the first source that can handle the input. Order is
// fixed: YouTube first, local second, so a bare 11-character string that
// could be either is treated as a video id.
func Detect(tools *media.Tools, input string) (model.Source, bool) {
	for _, s := range []model.Source{NewYouTubeSource(tools), NewLocalSource(tools)} {
		if s.CanHandle(input) {
			return s, true
		}
	}
	return nil, false
}

// ParseInput resolves input to its source and media id.
func ParseInput(tools *media.Tools, input string) (model.Source, string, error) {
	s, ok := Detect(tools, input)
	if !ok {
		return nil, "", model.Errf(model.KindInvalidInput, "could not parse input: %s", input)
	}
	id, ok := s.ExtractID(input)
	if !ok {
		return nil, "", model.Errf(model.KindInvalidInput, "could not extract media id from: %s", input)
	}
	return s, id, nil
}
