package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	errOut   io.Writer
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(out, errOut io.Writer, jsonMode, noColor bool) *UI {
	return &UI{out: out, errOut: errOut, noColor: noColor, jsonMode: jsonMode}
}

func (ui *UI) print(w io.Writer, attr color.Attribute, symbol, format string, args ...any) {
	if ui.jsonMode {
		return
	}
	msg := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(w, msg)
		return
	}
	color.New(attr).Fprint(w, msg)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...any) {
	ui.print(ui.out, color.FgGreen, "✓", format, args...)
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...any) {
	ui.print(ui.errOut, color.FgRed, "✗", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...any) {
	ui.print(ui.out, color.FgYellow, "⚠", format, args...)
}

// Info prints an informational message.
func (ui *UI) Info(format string, args ...any) {
	ui.print(ui.out, color.FgCyan, "ℹ", format, args...)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
		return
	}
	color.New(color.Bold).Fprintf(ui.out, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

// Text prints a block of plain text.
func (ui *UI) Text(text string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out, text)
}

// Table prints rows under headers.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode {
		return
	}
	w := tabwriter.NewWriter(ui.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// JSON writes v as indented JSON when in JSON mode.
func (ui *UI) JSON(v any) error {
	if !ui.jsonMode {
		return nil
	}
	enc := json.NewEncoder(ui.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Spinner starts an indeterminate spinner; call the returned func to stop it.
func (ui *UI) Spinner(message string) func() {
	if ui.jsonMode {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(ui.errOut))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}

// ItemBar returns a progress callback drawing a bar of quiz items.
func (ui *UI) ItemBar(description string) (func(done, total int), func()) {
	if ui.jsonMode {
		return nil, func() {}
	}

	var bar *progressbar.ProgressBar
	update := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(ui.errOut),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("items"),
				progressbar.OptionEnableColorCodes(!ui.noColor),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(ui.errOut) }),
			)
		}
		_ = bar.Set(done)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return update, finish
}

// WindowBar returns a progress callback drawing a bar of summary windows.
func (ui *UI) WindowBar(name string) (func(done, total int), func()) {
	if ui.jsonMode {
		return nil, func() {}
	}

	progress := mpb.New(mpb.WithOutput(ui.errOut), mpb.WithWidth(40))
	var bar *mpb.Bar
	update := func(done, total int) {
		if bar == nil {
			bar = progress.AddBar(int64(total),
				mpb.PrependDecorators(decor.Name(name, decor.WCSyncSpaceR)),
				mpb.AppendDecorators(decor.CountersNoUnit("%d / %d windows")),
			)
		}
		bar.SetCurrent(int64(done))
	}
	finish := func() {
		if bar != nil && !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}
	return update, finish
}
