// cmd/tools/form-builder/main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"visa-portal/internal/common/validation"
	"visa-portal/internal/formbuilder"
	"visa-portal/internal/models"
)

const defaultDraftPath = "configs/form-drafts.json"

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			help(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// command edits the builder restored from the draft file. Commands that change
// nothing return save=false.
type command struct {
	usage string
	setup func(fs *flag.FlagSet) func(b *formbuilder.Builder, out io.Writer) (save bool, err error)
}

var commands = map[string]command{
	"init": {
		usage: "Create an empty form for a university and make it active",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				if b.ActiveUniversity() == "" {
					return false, errors.New("-university is required for init")
				}
				b.InitializeForm(b.ActiveUniversity())
				fmt.Fprintf(out, "Initialized form for %s\n", b.ActiveUniversity())
				return true, nil
			}
		},
	},
	"add": {
		usage: "Append a question to the active form",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			qt := fs.String("type", string(models.QuestionShortAnswer), "Question type (short-answer, paragraph, multiple-choice, checkboxes, dropdown, date, file-upload)")
			title := fs.String("title", "", "Question title")
			required := fs.Bool("required", false, "Mark the question required")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				q, err := b.AddQuestion(models.QuestionType(*qt))
				if err != nil {
					return false, err
				}
				if *title != "" || *required {
					if err := b.UpdateQuestion(q.ID, formbuilder.QuestionPatch{Title: title, Required: required}); err != nil {
						return false, err
					}
				}
				fmt.Fprintf(out, "Added question %s\n", q.ID)
				return true, nil
			}
		},
	},
	"update": {
		usage: "Patch a question's fields",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			qt := fs.String("type", "", "New question type")
			title := fs.String("title", "", "New title")
			description := fs.String("description", "", "New description")
			placeholder := fs.String("placeholder", "", "New placeholder")
			required := fs.String("required", "", "true or false")
			options := fs.String("options", "", "Comma-separated options")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				if *id == "" {
					return false, errors.New("-id is required for update")
				}
				patch := formbuilder.QuestionPatch{}
				set := visited(fs)
				if set["type"] {
					t := models.QuestionType(*qt)
					patch.Type = &t
				}
				if set["title"] {
					patch.Title = title
				}
				if set["description"] {
					patch.Description = description
				}
				if set["placeholder"] {
					patch.Placeholder = placeholder
				}
				if set["required"] {
					v, err := strconv.ParseBool(*required)
					if err != nil {
						return false, fmt.Errorf("invalid -required value: %w", err)
					}
					patch.Required = &v
				}
				if set["options"] {
					patch.Options = splitOptions(*options)
				}
				if err := b.UpdateQuestion(*id, patch); err != nil {
					return false, err
				}
				fmt.Fprintf(out, "Updated question %s\n", *id)
				return true, nil
			}
		},
	},
	"delete": {
		usage: "Remove a question",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				if err := b.DeleteQuestion(*id); err != nil {
					return false, err
				}
				fmt.Fprintf(out, "Deleted question %s\n", *id)
				return true, nil
			}
		},
	},
	"duplicate": {
		usage: "Copy a question right after itself",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				dup, err := b.DuplicateQuestion(*id)
				if err != nil {
					return false, err
				}
				if dup == nil {
					return false, fmt.Errorf("question %s not found", *id)
				}
				fmt.Fprintf(out, "Duplicated question %s as %s\n", *id, dup.ID)
				return true, nil
			}
		},
	},
	"move": {
		usage: "Move the question at -from to index -to",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			from := fs.Int("from", -1, "Current index")
			to := fs.Int("to", -1, "Target index")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				if err := b.MoveQuestion(*from, *to); err != nil {
					return false, err
				}
				fmt.Fprintf(out, "Moved question %d to %d\n", *from, *to)
				return true, nil
			}
		},
	},
	"add-option": {
		usage: "Append an option to a choice question",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				return true, b.AddOption(*id)
			}
		},
	},
	"update-option": {
		usage: "Rename an option of a choice question",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			index := fs.Int("index", -1, "Option index")
			value := fs.String("value", "", "New option text")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				return true, b.UpdateOption(*id, *index, *value)
			}
		},
	},
	"delete-option": {
		usage: "Remove an option from a choice question",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			id := fs.String("id", "", "Question ID")
			index := fs.Int("index", -1, "Option index")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				return true, b.DeleteOption(*id, *index)
			}
		},
	},
	"meta": {
		usage: "Set the active form's title or description",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			title := fs.String("title", "", "Form title")
			description := fs.String("description", "", "Form description")
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				patch := formbuilder.MetadataPatch{}
				set := visited(fs)
				if set["title"] {
					patch.FormTitle = title
				}
				if set["description"] {
					patch.FormDescription = description
				}
				return true, b.UpdateFormMetadata(patch)
			}
		},
	},
	"validate": {
		usage: "Check every drafted form against the form schema and readiness",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				return false, validateDraft(b, out)
			}
		},
	},
	"show": {
		usage: "Print the active form as JSON",
		setup: func(fs *flag.FlagSet) func(*formbuilder.Builder, io.Writer) (bool, error) {
			return func(b *formbuilder.Builder, out io.Writer) (bool, error) {
				form := b.ActiveForm()
				if form == nil {
					return false, formbuilder.ErrNoActiveForm
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return false, enc.Encode(form)
			}
		},
	},
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 || args[0] == "help" {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("file", defaultDraftPath, "Path to the draft file")
	university := fs.String("university", "", "University whose form to edit (defaults to the active one)")
	exec := cmd.setup(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	draft, err := loadDraft(*path)
	if err != nil {
		return err
	}
	b := formbuilder.FromDraft(draft)
	if *university != "" {
		b.SelectUniversity(*university)
	}

	save, err := exec(b, out)
	if err != nil {
		return err
	}
	if !save {
		return nil
	}
	return saveDraft(b.Draft(), *path)
}

func validateDraft(b *formbuilder.Builder, out io.Writer) error {
	draft := b.Draft()
	if len(draft.Forms) == 0 {
		return errors.New("draft contains no forms")
	}
	universities := make([]string, 0, len(draft.Forms))
	for u := range draft.Forms {
		universities = append(universities, u)
	}
	sort.Strings(universities)

	var failed []string
	for _, u := range universities {
		result := validation.ValidateFormModel(draft.Forms[u])
		if !result.Valid {
			failed = append(failed, u)
			for _, msg := range result.GetErrorMessages() {
				fmt.Fprintf(out, "  %s: %s\n", u, msg)
			}
		}
	}
	readiness := b.FormsReady(universities)
	for _, u := range readiness.NotReady {
		fmt.Fprintf(out, "  %s: form has no questions\n", u)
	}
	if len(failed) > 0 || !readiness.Ready {
		return fmt.Errorf("draft validation failed")
	}
	fmt.Fprintf(out, "Draft validation passed. Found %d forms.\n", len(universities))
	return nil
}

// loadDraft reads the draft file. A missing file is an empty draft.
func loadDraft(path string) (*formbuilder.Draft, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	var d formbuilder.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	return &d, nil
}

func saveDraft(d *formbuilder.Draft, path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}
	return nil
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func splitOptions(s string) []string {
	var opts []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}

func help(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nUsage: form-builder <command> [-file path] [-university name] [flags]\n\nCommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
	fmt.Fprint(w, `
Examples:
  form-builder init -university "University of Toronto"
  form-builder add -type multiple-choice -title "Preferred intake" -required
  form-builder update -id <question-id> -options "Fall,Winter"
  form-builder move -from 2 -to 0
  form-builder validate -file configs/form-drafts.json

Use 'form-builder <command> -h' for more information about a command.
`)
}
