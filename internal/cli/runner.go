package cli

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/idilsaglam/tasklist/internal/manager"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/ui"
	"github.com/idilsaglam/tasklist/internal/validate"
)

// Options tune output behavior from root flags.
type Options struct {
	Group bool // list grouped by pending/done

	Manager *manager.Manager
	// Interactive runs the TUI; nil disables the tui subcommand.
	Interactive func(ctx context.Context) error

	Out io.Writer
	Err io.Writer
	In  io.Reader
}

func (o *Options) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.In == nil {
		o.In = os.Stdin
	}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	if len(args) == 0 {
		PrintHelp(opt.Out)
		return 2
	}
	r := runner{ctx: ctx, opt: opt, m: opt.Manager}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(opt.Out)
		return 0

	case "ls":
		switch {
		case len(a) == 0:
			return r.list(r.m.GetAll(), "Tasks")
		case a[0] == "pending":
			return r.list(r.m.GetPending(), "Pending")
		case a[0] == "done":
			return r.list(r.m.GetCompleted(), "Done")
		}
		return r.usage("usage: tasks ls [pending|done]")

	case "add":
		if len(a) == 0 {
			return r.usage("usage: tasks add <text...>")
		}
		return r.add(strings.Join(a, " "))

	case "done":
		if len(a) != 1 {
			return r.usage("usage: tasks done <index|id>")
		}
		return r.toggle(a[0])

	case "undone":
		if len(a) != 1 {
			return r.usage("usage: tasks undone <index|id>")
		}
		return r.reopen(a[0])

	case "rm":
		if len(a) != 1 {
			return r.usage("usage: tasks rm <index|id>")
		}
		return r.remove(a[0])

	case "edit":
		if len(a) < 2 {
			return r.usage("usage: tasks edit <index|id> <text...>")
		}
		return r.edit(a[0], strings.Join(a[1:], " "))

	case "batch":
		if len(a) < 2 {
			return r.usage("usage: tasks batch <complete|incomplete|delete> <index|id...>")
		}
		return r.batch(a[0], a[1:])

	case "clear":
		return r.clear()

	case "search":
		if len(a) == 0 {
			return r.usage("usage: tasks search <query...>")
		}
		return r.list(r.m.Search(strings.Join(a, " ")), "Matches")

	case "stats":
		return r.stats()

	case "export":
		if len(a) > 1 {
			return r.usage("usage: tasks export [file]")
		}
		return r.export(a)

	case "import":
		if len(a) != 1 {
			return r.usage("usage: tasks import <file|->")
		}
		return r.importFrom(a[0])

	case "usage":
		return r.storageUsage()

	case "tui":
		if opt.Interactive == nil {
			ui.Fail(opt.Err, "tui: not available")
			return 1
		}
		if err := opt.Interactive(ctx); err != nil {
			ui.Fail(opt.Err, "tui: "+err.Error())
			return 1
		}
		return 0
	}

	ui.Fail(opt.Err, "unknown subcommand: "+cmd)
	fmt.Fprintln(opt.Err)
	PrintHelp(opt.Err)
	return 2
}

func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `tasks - a small task list

Usage:
  tasks [flags] <subcommand> [args]

Subcommands:
  add <text...>                 Add a task (newest tasks are listed first)
  ls [pending|done]             List tasks
  done <ref>                    Toggle done for a task
  undone <ref>                  Mark a task pending
  rm <ref>                      Remove a task
  edit <ref> <text...>          Replace the text of a task
  batch <action> <ref...>       complete, incomplete or delete several tasks
  clear                         Remove every task
  search <query...>             List tasks whose text contains query
  stats                         Show counts and completion rate
  export [file]                 Write all tasks as JSON (stdout by default)
  import <file|->               Replace all tasks with an exported file
  usage                         Show storage usage
  tui                           Interactive list

A <ref> is the 1-based index shown by ls or a task id.

Examples:
  tasks add "Buy milk"
  tasks ls
  tasks done 2
  tasks batch complete 1 3
  tasks export > backup.json
`)
}

type runner struct {
	ctx context.Context
	opt Options
	m   *manager.Manager
}

func (r runner) usage(msg string) int {
	ui.Fail(r.opt.Err, msg)
	return 2
}

// fail prints err and maps it onto an exit code.
func (r runner) fail(op string, err error) int {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		for _, fe := range verr.Fields {
			ui.Fail(r.opt.Err, op+": "+fe.Message)
		}
		return 2
	case errors.Is(err, manager.ErrNotFound):
		ui.Fail(r.opt.Err, op+": "+err.Error())
		fmt.Fprintln(r.opt.Err, ui.C(ui.Current().Muted, "Hint: run `tasks ls` to see valid indexes"))
		return 2
	case errors.Is(err, manager.ErrPersistence):
		ui.Fail(r.opt.Err, op+": "+err.Error())
		fmt.Fprintln(r.opt.Err, ui.C(ui.Current().Muted, "Nothing was changed. Try again once storage is writable."))
		return 1
	}
	ui.Fail(r.opt.Err, op+": "+err.Error())
	return 1
}

// resolve turns a 1-based index or an id into an id.
func (r runner) resolve(ref string) (string, bool) {
	if _, ok := r.m.GetByID(ref); ok {
		return ref, true
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return "", false
	}
	all := r.m.GetAll()
	if n < 1 || n > len(all) {
		return "", false
	}
	return all[n-1].ID, true
}

func (r runner) refError(op, ref string) int {
	ui.Fail(r.opt.Err, fmt.Sprintf("%s: no task %q (have %d)", op, ref, len(r.m.GetAll())))
	fmt.Fprintln(r.opt.Err, ui.C(ui.Current().Muted, "Hint: run `tasks ls` to see valid indexes"))
	return 2
}

// -------------- subcommand impls ----------------

func (r runner) add(text string) int {
	rec, err := r.m.Add(r.ctx, text)
	if err != nil {
		return r.fail("add", err)
	}
	ui.OK(r.opt.Out, "added "+ui.Dim(rec.ID))
	return 0
}

func (r runner) toggle(ref string) int {
	id, ok := r.resolve(ref)
	if !ok {
		return r.refError("done", ref)
	}
	rec, err := r.m.Toggle(r.ctx, id)
	if err != nil {
		return r.fail("done", err)
	}
	if rec.Completed {
		ui.OK(r.opt.Out, "done")
	} else {
		ui.OK(r.opt.Out, "pending again")
	}
	return 0
}

func (r runner) reopen(ref string) int {
	id, ok := r.resolve(ref)
	if !ok {
		return r.refError("undone", ref)
	}
	if _, err := r.m.Update(r.ctx, id, map[string]any{"completed": false}); err != nil {
		return r.fail("undone", err)
	}
	ui.OK(r.opt.Out, "pending")
	return 0
}

func (r runner) remove(ref string) int {
	id, ok := r.resolve(ref)
	if !ok {
		return r.refError("rm", ref)
	}
	if err := r.m.Delete(r.ctx, id); err != nil {
		return r.fail("rm", err)
	}
	ui.OK(r.opt.Out, "removed")
	return 0
}

func (r runner) edit(ref, text string) int {
	id, ok := r.resolve(ref)
	if !ok {
		return r.refError("edit", ref)
	}
	if _, err := r.m.Update(r.ctx, id, map[string]any{"text": text}); err != nil {
		return r.fail("edit", err)
	}
	ui.OK(r.opt.Out, "updated")
	return 0
}

func (r runner) batch(action string, refs []string) int {
	act, ok := model.ParseBatchAction(action)
	if !ok {
		return r.usage("batch: action must be complete, incomplete or delete")
	}
	// Resolve every ref before anything changes: indexes shift on delete.
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, ok := r.resolve(ref)
		if !ok {
			return r.refError("batch", ref)
		}
		ids = append(ids, id)
	}
	n, err := r.m.Batch(r.ctx, ids, act)
	if err != nil {
		return r.fail("batch", err)
	}
	ui.OK(r.opt.Out, fmt.Sprintf("%s: %d changed", act, n))
	return 0
}

func (r runner) clear() int {
	n := len(r.m.GetAll())
	if err := r.m.ClearAll(r.ctx); err != nil {
		return r.fail("clear", err)
	}
	ui.OK(r.opt.Out, fmt.Sprintf("cleared %d tasks", n))
	return 0
}

func (r runner) stats() int {
	s := r.m.Stats()
	ui.Panel(r.opt.Out, []string{
		ui.C(ui.Current().Title, "Stats"),
		fmt.Sprintf("%s %d", ui.C(ui.Current().Accent, "Total    "), s.Total),
		fmt.Sprintf("%s %d", ui.C(ui.Current().Success, "Done     "), s.Completed),
		fmt.Sprintf("%s %d", ui.C(ui.Current().Pending, "Pending  "), s.Pending),
		ui.C(ui.Current().Muted, ui.ProgressBar(s.CompletionRate, 28)),
	})
	return 0
}

func (r runner) export(a []string) int {
	b, err := r.m.ExportSnapshot()
	if err != nil {
		return r.fail("export", err)
	}
	if len(a) == 0 || a[0] == "-" {
		fmt.Fprintln(r.opt.Out, string(b))
		return 0
	}
	if err := os.WriteFile(a[0], b, 0o600); err != nil {
		return r.fail("export", err)
	}
	ui.OK(r.opt.Out, "exported to "+a[0])
	return 0
}

func (r runner) importFrom(src string) int {
	var (
		b   []byte
		err error
	)
	if src == "-" {
		b, err = io.ReadAll(r.opt.In)
	} else {
		b, err = os.ReadFile(src)
	}
	if err != nil {
		return r.fail("import", err)
	}
	if err := r.m.ImportSnapshot(r.ctx, b); err != nil {
		if errors.Is(err, manager.ErrImportFormat) {
			ui.Fail(r.opt.Err, err.Error())
			return 2
		}
		return r.fail("import", err)
	}
	ui.OK(r.opt.Out, fmt.Sprintf("imported %d tasks", len(r.m.GetAll())))
	return 0
}

func (r runner) storageUsage() int {
	u := r.m.Usage(r.ctx)
	if !u.Available {
		ui.Warn(r.opt.Out, "storage unavailable: this session is not saved")
		return 0
	}
	fmt.Fprintf(r.opt.Out, "%d / %d bytes (%.2f%%)\n", u.BytesUsed, u.BytesTotal, u.PercentUsed)
	return 0
}

// -------------- rendering helpers --------------

func (r runner) list(records []model.Record, title string) int {
	s := r.m.Stats()
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(ui.Current().Title, title),
		ui.C(ui.Current().Success, ui.Current().SymDone), s.Completed,
		ui.C(ui.Current().Pending, ui.Current().SymPending), s.Pending,
		ui.C(ui.Current().Accent, "Total"), s.Total,
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, ui.C(ui.Current().Muted, ui.ProgressBar(s.CompletionRate, 28)))
	lines = append(lines, "")

	index := indexByID(r.m.GetAll())
	if r.opt.Group {
		lines = append(lines, groupLines(records, index)...)
	} else {
		lines = append(lines, flatLines(records, index)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(ui.Current().Muted, "Tip: add with `tasks add \"Buy milk\"`"))
	ui.Panel(r.opt.Out, lines)
	return 0
}

// indexByID maps ids to the 1-based index accepted as a ref.
func indexByID(all []model.Record) map[string]int {
	out := make(map[string]int, len(all))
	for i, rec := range all {
		out[rec.ID] = i + 1
	}
	return out
}

// Display undoes the storage escaping for terminal output.
func Display(text string) string { return html.UnescapeString(text) }

func flatLines(records []model.Record, index map[string]int) []string {
	if len(records) == 0 {
		return []string{ui.C(ui.Current().Muted, "no tasks")}
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		idx := fmt.Sprintf("%2d.", index[rec.ID])
		box := ui.Current().BoxUnchecked
		color := ui.Current().Muted
		if rec.Completed {
			box, color = ui.Current().BoxChecked, ui.Current().Success
		}
		text := []rune(Display(rec.Text))
		if len(text) > 80 {
			text = append(text[:77], []rune("...")...)
		}
		out = append(out, fmt.Sprintf("%s %s %s", ui.Dim(idx), ui.C(color, box), string(text)))
	}
	return out
}

func groupLines(records []model.Record, index map[string]int) []string {
	var pend, done []model.Record
	for _, rec := range records {
		if rec.Completed {
			done = append(done, rec)
		} else {
			pend = append(pend, rec)
		}
	}
	var lines []string
	lines = append(lines, ui.C(ui.Current().Accent, "Pending"))
	if len(pend) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(pend, index)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(ui.Current().Accent, "Done"))
	if len(done) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(done, index)...)
	}
	return lines
}
