package tool

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
)

// Workspace is a directory the document tools read and write. File names
// are resolved inside it and cannot escape it.
type Workspace struct {
	root *os.Root
}

// OpenWorkspace opens dir, creating it when missing.
func OpenWorkspace(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	return &Workspace{root: root}, nil
}

// Close releases the workspace directory handle.
func (w *Workspace) Close() error { return w.root.Close() }

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.root.Name() }

type outlineArgs struct {
	Points   []string `json:"points" description:"List of main points or sections."`
	FileName string   `json:"file_name" description:"File path to save the outline."`
}

type readArgs struct {
	FileName string `json:"file_name" description:"File path of the document."`
	Start    *int   `json:"start" description:"The start line. Default is 0."`
	End      *int   `json:"end" description:"The end line. Default is the end of the document."`
}

type writeArgs struct {
	Content  string `json:"content" description:"Text content to be written into the document."`
	FileName string `json:"file_name" description:"File path to save the document."`
}

type editArgs struct {
	FileName string            `json:"file_name" description:"Path of the document to be edited."`
	Inserts  map[string]string `json:"inserts" description:"Object where key is the line number (1-indexed) and value is the text to be inserted at that line."`
}

// Tools returns create_outline, read_document, write_document and
// edit_document bound to the workspace.
func (w *Workspace) Tools() []Tool {
	return []Tool{
		NewFunctionToolFromStruct("create_outline", "Create and save an outline.", outlineArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				var in outlineArgs
				if err := util.DecodeArgs(args, &in); err != nil {
					return nil, err
				}

				var b strings.Builder
				for i, point := range in.Points {
					fmt.Fprintf(&b, "%d. %s\n", i+1, point)
				}
				if err := w.write(in.FileName, b.String()); err != nil {
					return nil, err
				}

				return fmt.Sprintf("Outline saved to %s", in.FileName), nil
			}),
		NewFunctionToolFromStruct("read_document", "Read the specified document.", readArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				var in readArgs
				if err := util.DecodeArgs(args, &in); err != nil {
					return nil, err
				}

				lines, err := w.lines(in.FileName)
				if err != nil {
					return nil, err
				}

				start, end := 0, len(lines)
				if in.Start != nil {
					start = clamp(*in.Start, 0, len(lines))
				}
				if in.End != nil {
					end = clamp(*in.End, start, len(lines))
				}

				return strings.Join(lines[start:end], "\n"), nil
			}),
		NewFunctionToolFromStruct("write_document", "Create and save a text document.", writeArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				var in writeArgs
				if err := util.DecodeArgs(args, &in); err != nil {
					return nil, err
				}

				if err := w.write(in.FileName, in.Content); err != nil {
					return nil, err
				}

				return fmt.Sprintf("Document saved to %s", in.FileName), nil
			}),
		NewFunctionToolFromStruct("edit_document", "Edit a document by inserting text at specific line numbers.", editArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				var in editArgs
				if err := util.DecodeArgs(args, &in); err != nil {
					return nil, err
				}

				lines, err := w.lines(in.FileName)
				if err != nil {
					return nil, err
				}

				lines, err = applyInserts(lines, in.Inserts)
				if err != nil {
					return nil, NewToolError("edit_document", err.Error(), CodeValidation)
				}

				if err := w.write(in.FileName, strings.Join(lines, "\n")+"\n"); err != nil {
					return nil, err
				}

				return fmt.Sprintf("Document edited and saved to %s", in.FileName), nil
			}),
	}
}

// applyInserts inserts texts in ascending line order. Each line number is
// checked against the document as modified by the previous inserts.
func applyInserts(lines []string, inserts map[string]string) ([]string, error) {
	type insert struct {
		line int
		text string
	}

	ordered := make([]insert, 0, len(inserts))
	for key, text := range inserts {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("Error: Line number %s is not a number.", key)
		}
		ordered = append(ordered, insert{line: n, text: text})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].line < ordered[j].line })

	for _, ins := range ordered {
		if ins.line < 1 || ins.line > len(lines)+1 {
			return nil, fmt.Errorf("Error: Line number %d is out of range.", ins.line)
		}
		lines = append(lines, "")
		copy(lines[ins.line:], lines[ins.line-1:])
		lines[ins.line-1] = ins.text
	}

	return lines, nil
}

func (w *Workspace) write(name, content string) error {
	f, err := w.root.Create(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

func (w *Workspace) lines(name string) ([]string, error) {
	f, err := w.root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}

	return strings.Split(text, "\n"), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
