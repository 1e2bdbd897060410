package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for depscout.

To load completions:

Bash:
  $ source <(depscout completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ depscout completion bash > /etc/bash_completion.d/depscout
  # macOS:
  $ depscout completion bash > $(brew --prefix)/etc/bash_completion.d/depscout

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ depscout completion zsh > "${fpath[1]}/_depscout"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ depscout completion fish | source

  # To load completions for each session, execute once:
  $ depscout completion fish > ~/.config/fish/completions/depscout.fish

PowerShell:
  PS> depscout completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> depscout completion powershell > depscout.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}

	return cmd
}

// registerScanCompletions completes detector ids, categories and formats for
// the filter flags of scan.
func (c *CLI) registerScanCompletions(cmd *cobra.Command) {
	ids := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		infos, err := c.Registry.Infos()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		var out []string
		for _, info := range infos {
			out = append(out, info.ID+"\t"+info.Gate)
		}
		return filterList(out, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
	cats := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterList(c.categories(), toComplete), cobra.ShellCompDirectiveNoFileComp
	}
	for _, name := range []string{"detectors", "disable-detectors"} {
		_ = cmd.RegisterFlagCompletionFunc(name, ids)
	}
	for _, name := range []string{"categories", "exclude-categories"} {
		_ = cmd.RegisterFlagCompletionFunc(name, cats)
	}
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{formatJSON, formatDOT, formatSVG}, cobra.ShellCompDirectiveNoFileComp))
}

// categories lists every category a registered detector belongs to.
func (c *CLI) categories() []string {
	infos, _ := c.Registry.Infos()
	var out []string
	for _, info := range infos {
		out = append(out, info.Categories...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// filterList completes comma-separated values: the part after the last comma
// is matched, and the earlier parts are kept as the prefix.
func filterList(values []string, toComplete string) []string {
	prefix, last := "", toComplete
	if i := strings.LastIndexByte(toComplete, ','); i >= 0 {
		prefix, last = toComplete[:i+1], toComplete[i+1:]
	}
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, last) {
			out = append(out, prefix+v)
		}
	}
	return out
}
