package main

import (
	"fmt"
	"strings"

	"wake-go/internal/app"

	"github.com/spf13/cobra"
)

// alarm command
var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Manage alarms",
}

var alarmAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an alarm",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		in := app.AlarmInput{}
		in.Label, _ = f.GetString("label")
		in.Time, _ = f.GetString("time")
		in.Period, _ = f.GetString("period")
		in.Schedule, _ = f.GetString("schedule")
		in.Challenge, _ = f.GetString("challenge")
		in.ChallengeIcon, _ = f.GetString("icon")
		in.ChallengeType, _ = f.GetString("type")
		in.Difficulty, _ = f.GetString("difficulty")
		in.Disabled, _ = f.GetBool("disabled")

		a, err := newApp(cmd, "CreateAlarm")
		if err != nil {
			return err
		}
		defer a.Close()

		alarm, err := a.CreateAlarm(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("creating alarm: %w", err)
		}
		fmt.Printf("Created alarm %s\n", alarm.ID)
		return nil
	},
}

var alarmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alarms",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListAlarms")
		if err != nil {
			return err
		}
		defer a.Close()

		alarms, err := a.ListAlarms(cmd.Context())
		if err != nil {
			return err
		}

		if len(alarms) == 0 {
			fmt.Println("No alarms.")
			return nil
		}
		for _, al := range alarms {
			state := "on "
			if !al.Enabled {
				state = "off"
			}
			fmt.Printf("%s  %s  %s %s  %-14s %-8s %s\n",
				al.ID, state, al.Time, al.Period, al.Schedule, al.Difficulty, al.Label)
		}
		return nil
	},
}

var alarmEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change an alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edit := app.AlarmEdit{
			Label:      changedString(cmd, "label"),
			Time:       changedString(cmd, "time"),
			Period:     changedString(cmd, "period"),
			Schedule:   changedString(cmd, "schedule"),
			Challenge:  changedString(cmd, "challenge"),
			Difficulty: changedString(cmd, "difficulty"),
		}

		a, err := newApp(cmd, "EditAlarm")
		if err != nil {
			return err
		}
		defer a.Close()

		alarm, err := a.EditAlarm(cmd.Context(), args[0], edit)
		if err != nil {
			return fmt.Errorf("editing alarm: %w", err)
		}
		fmt.Printf("Updated alarm %s: %s %s %s\n", alarm.ID, alarm.Time, alarm.Period, alarm.Schedule)
		return nil
	},
}

func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func newSetEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, "SetEnabled")
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.SetEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Printf("Alarm %s %sd\n", args[0], use)
			return nil
		},
	}
}

var alarmRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "DeleteAlarm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteAlarm(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted alarm %s\n", args[0])
		return nil
	},
}

func addAlarmFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("label", "", "Alarm label")
	f.String("time", "", "Time as hh:mm on a 12-hour clock")
	f.String("period", "", "AM or PM")
	f.String("schedule", "", "Once, Daily, Weekdays, Weekends or a day list like Mon,Wed,Fri")
	f.String("challenge", "", "Challenge name shown on the alarm screen")
	f.String("difficulty", "", "easy, medium or hard")
}

func init() {
	addAlarmFlags(alarmAddCmd)
	alarmAddCmd.Flags().String("icon", "", "Challenge icon name")
	alarmAddCmd.Flags().String("type", "", "Challenge type")
	alarmAddCmd.Flags().Bool("disabled", false, "Create the alarm switched off")
	alarmAddCmd.MarkFlagRequired("time")
	alarmAddCmd.MarkFlagRequired("period")

	addAlarmFlags(alarmEditCmd)

	alarmCmd.AddCommand(alarmAddCmd)
	alarmCmd.AddCommand(alarmListCmd)
	alarmCmd.AddCommand(alarmEditCmd)
	alarmCmd.AddCommand(newSetEnabledCmd("enable", true))
	alarmCmd.AddCommand(newSetEnabledCmd("disable", false))
	alarmCmd.AddCommand(alarmRmCmd)
}
