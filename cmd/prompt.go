package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/storycast/internal/prompt"
	"github.com/nextlevelbuilder/storycast/internal/themes"
)

func promptCmd() *cobra.Command {
	var (
		mode        string
		task        string
		currentTime string
		yearOfBirth int
		visual      bool
	)
	cmd := &cobra.Command{
		Use:   "prompt [message]",
		Short: "Print the system prompt composed for a message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := prompt.ParseMode(mode)
			if err != nil {
				return err
			}
			t, err := prompt.ParseVisualTask(task)
			if err != nil {
				return err
			}
			lt, err := prompt.ParseLocalTime(currentTime)
			if err != nil {
				return err
			}
			var message string
			if len(args) == 1 {
				message = args[0]
			}
			modality := prompt.Textual
			if visual {
				modality = prompt.Visual
			}
			tags := themes.NewDetector().Detect(message)

			out := prompt.Compose(prompt.Input{
				Mode:      m,
				Modality:  modality,
				Task:      t,
				LocalTime: lt,
				Age:       prompt.AgeFromYearOfBirth(yearOfBirth, time.Now()),
				Themes:    tags,
			})
			params := prompt.Params(m)
			fmt.Fprintf(cmd.ErrOrStderr(), "# themes=%v temperature=%.2f max_tokens=%d\n", tags, params.Temperature, params.MaxTokens)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "story", "story or qna")
	cmd.Flags().StringVar(&task, "task", "", "visual task (Micro, Plants, Animals, Insects, Daily, Translation)")
	cmd.Flags().StringVar(&currentTime, "time", "", "child's local time, ISO 8601")
	cmd.Flags().IntVar(&yearOfBirth, "year-of-birth", 0, "child's year of birth")
	cmd.Flags().BoolVar(&visual, "visual", false, "pretend the message carries an image")
	return cmd
}
