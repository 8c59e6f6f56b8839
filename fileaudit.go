package fileschema

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/transfer"
)

// auditColumns are the columns of the run-audit table staged by the File-Info and
// File-Copy adapters
var auditColumns = []string{
	"Id",
	"RunStart",
	"RunEnd",
	"Success",
	"FileSize",
	"SourcePath",
	"TargetPath",
	"Error",
}

// auditRow is one run-audit record
type auditRow struct {
	id      string
	start   time.Time
	end     time.Time
	success bool
	size    int64
	source  string
	target  string
	err     error
}

// values renders the audit record; the size uses binary unit suffixes (KiB, MiB)
func (r auditRow) values() model.Row {
	size := ""
	if r.size >= 0 {
		size = humanize.IBytes(uint64(r.size))
	}
	errText := ""
	if r.err != nil {
		errText = r.err.Error()
	}
	return model.Row{
		r.id,
		r.start.Format(time.RFC3339Nano),
		r.end.Format(time.RFC3339Nano),
		strconv.FormatBool(r.success),
		size,
		r.source,
		r.target,
		errText,
	}
}

// auditAdapter stages one run-audit row per invocation instead of file content
type auditAdapter struct {
	adapterBase
	now   func() time.Time
	newID func() string
}

func newAuditAdapter(base adapterBase, now func() time.Time) auditAdapter {
	return auditAdapter{adapterBase: base, now: now, newID: uuid.NewString}
}

func (a auditAdapter) stage(ctx context.Context, row auditRow) (int64, error) {
	stmt := a.statement(textColumns(auditColumns))
	return a.loader().load(ctx, stmt, newSliceSource(row.values()), 0)
}

// FileInfoAdapter records file metadata without reading its content.
type FileInfoAdapter struct {
	auditAdapter
}

// ImportTable stages one audit row describing path
func (a *FileInfoAdapter) ImportTable(ctx context.Context, path string, _ model.RootPath, _ int) (int64, error) {
	errCtx := model.NewErrorContext("import file info", path).WithTable(a.table)
	start := a.now()

	info, err := os.Stat(path)
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to stat %s", path))
	}

	loaded, err := a.stage(ctx, auditRow{
		id:      a.newID(),
		start:   start,
		end:     a.now(),
		success: true,
		size:    info.Size(),
		source:  path,
	})
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}

// FileCopyAdapter copies the source file to its configured destination and stages
// one audit row. Transfer failures are recorded in the audit row's Error column and
// never returned; only staging failures are.
type FileCopyAdapter struct {
	auditAdapter
	throttle   *transfer.Throttle
	transferer transfer.Transferer
}

// ImportTable copies path and stages the outcome
func (a *FileCopyAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, _ int) (int64, error) {
	row := auditRow{
		id:     a.newID(),
		start:  a.now(),
		size:   -1,
		source: path,
	}

	row.target, row.err = a.copyFile(ctx, path, layout.Copy)
	if info, err := os.Stat(path); err == nil {
		row.size = info.Size()
	}
	row.success = row.err == nil
	row.end = a.now()

	if row.err != nil {
		a.logger.Warn("file copy failed", "path", path, "error", row.err)
	}

	loaded, err := a.stage(ctx, row)
	if err != nil {
		return loaded, model.NewErrorContext("import file copy", path).WithTable(a.table).Error(err)
	}
	return loaded, nil
}

func (a *FileCopyAdapter) copyFile(ctx context.Context, path string, settings model.CopySettings) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", model.WrapSourceRead(err, "failed to stat %s", path)
	}
	if settings.Mode == model.TransferNone {
		return "", nil
	}

	target := transfer.TargetPath(path, settings)
	if a.throttle != nil {
		if err := a.throttle.Wait(ctx, settings.MinInterval); err != nil {
			return target, model.WrapSourceRead(err, "transfer of %s interrupted", path)
		}
	}

	copied, err := a.transferer.Transfer(ctx, path, settings)
	if copied == "" {
		copied = target
	}
	return copied, err
}
