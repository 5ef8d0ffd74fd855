package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framestamp/pkg/template"
)

// templateExtensions lists the file extensions offered when completing a
// template argument.
var templateExtensions = []string{"json", "jsonc", "toml"}

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for framestamp.

To load completions:

Bash:
  $ source <(framestamp completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ framestamp completion bash > /etc/bash_completion.d/framestamp
  # macOS:
  $ framestamp completion bash > $(brew --prefix)/etc/bash_completion.d/framestamp

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ framestamp completion zsh > "${fpath[1]}/_framestamp"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ framestamp completion fish | source

  # To load completions for each session, execute once:
  $ framestamp completion fish > ~/.config/fish/completions/framestamp.fish

PowerShell:
  PS> framestamp completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> framestamp completion powershell > framestamp.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// completeTemplateFile completes the leading <template> argument with
// template files and every later argument with image files.
func completeTemplateFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return templateExtensions, cobra.ShellCompDirectiveFilterFileExt
	}
	return []string{"png", "jpg", "jpeg"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeTemplateName offers the template names held by the file given
// as the first argument.
func completeTemplateName(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	f, err := template.Load(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveError
	}
	var names []string
	for _, t := range f.Templates {
		if t.Name != "" && strings.HasPrefix(t.Name, toComplete) {
			names = append(names, t.Name+"\t"+t.Description)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
