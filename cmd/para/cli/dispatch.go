package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/corerr"
)

func newDispatchCmd() *cobra.Command {
	flags := &startFlags{}
	var file string
	cmd := &cobra.Command{
		Use:   "dispatch [name] <prompt>",
		Short: "Create a new session and hand it an initial prompt",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, name, err := resolveDispatchArgs(args, file)
			if err != nil {
				return writeError(cmd, err)
			}
			var nameArgs []string
			if name != "" {
				nameArgs = []string{name}
			}
			return runStart(cmd, nameArgs, flags, prompt)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "read the initial prompt from a file instead of the last positional argument")
	return cmd
}

// resolveDispatchArgs untangles dispatch's two optional positionals: a
// session name and a prompt. A single argument is the prompt; with two,
// the first is the name and the second the prompt. --file overrides the
// prompt source, leaving a single argument to be the name.
func resolveDispatchArgs(args []string, file string) (prompt, name string, err error) {
	if file != "" {
		content, readErr := os.ReadFile(file)
		if readErr != nil {
			return "", "", corerr.Wrap(corerr.IoError, readErr, "reading prompt file")
		}
		prompt = string(content)
		if len(args) == 1 {
			name = args[0]
		}
		return prompt, name, nil
	}

	switch len(args) {
	case 0:
		return "", "", corerr.New(corerr.NameInvalid, "dispatch requires a prompt, either as an argument or via --file")
	case 1:
		return args[0], "", nil
	default:
		return args[1], args[0], nil
	}
}
