package main

import (
	"io"
	"path/filepath"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/media"
)

func mediaParams(cmd *UploadCmd, body io.Reader) media.UploadParams {
	return media.UploadParams{
		Filename:         filepath.Base(cmd.File),
		ContentType:      contentType(cmd.File),
		Body:             body,
		Intent:           api.UploadIntent(cmd.Intent),
		DayTimestamp:     cmd.Day,
		Year:             cmd.Year,
		Month:            cmd.Month,
		WorkspacePageKey: cmd.Page,
	}
}
