package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/baldanca/metadata-export/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the persisted export settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := settings.Load(viper.GetString("settings"))
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(st)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Long:  "Set changes one setting and saves the file.\n\nKeys: " + strings.Join(settings.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("settings")
		st, err := settings.Load(path)
		if err != nil {
			return err
		}
		if st, err = st.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := settings.Save(path, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
