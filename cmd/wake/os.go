package main

import (
	"fmt"

	"wake-go/internal/wake"

	"github.com/spf13/cobra"
)

// os command drives the simulated operating system.
var osCmd = &cobra.Command{
	Use:   "os",
	Short: "Drive the simulated OS notification subsystem",
}

var osListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled and delivered notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "OSList")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.OSEntries(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing scheduled.")
			return nil
		}
		for _, e := range entries {
			printEntry(e)
		}
		return nil
	},
}

var osFireCmd = &cobra.Command{
	Use:   "fire",
	Short: "Deliver every notification that is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "OSFire")
		if err != nil {
			return err
		}
		defer a.Close()

		shown, err := a.OSFire(cmd.Context())
		if err != nil {
			return err
		}
		if len(shown) == 0 {
			fmt.Println("Nothing due.")
			return nil
		}
		for _, e := range shown {
			printEntry(e)
		}
		return nil
	},
}

var osPressCmd = &cobra.Command{
	Use:   "press HANDLE",
	Short: "Tap a delivered notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "OSPress")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.OSPress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Launching for alarm %s; run 'wake open'\n", p.AlarmID)
		return nil
	},
}

var osActionCmd = &cobra.Command{
	Use:   "action HANDLE snooze|dismiss",
	Short: "Press a notification button",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "OSAction")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.OSAction(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s sent for alarm %s\n", args[1], p.AlarmID)
		return nil
	},
}

var osGrantCmd = &cobra.Command{
	Use:   "grant AXIS STATE",
	Short: "Change a permission in the simulated settings app",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "OSGrant")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.OSGrant(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", args[0], args[1])
		return nil
	},
}

func printEntry(e wake.ScheduledAlarm) {
	state := "pending"
	if e.Delivered {
		state = "shown"
	}
	fmt.Printf("%-7s %-6s %s  %s\n", state, e.Kind, e.FireAt.Local().Format("Mon 2006-01-02 15:04"), e.Handle)
}

func init() {
	osCmd.AddCommand(osListCmd)
	osCmd.AddCommand(osFireCmd)
	osCmd.AddCommand(osPressCmd)
	osCmd.AddCommand(osActionCmd)
	osCmd.AddCommand(osGrantCmd)
}
