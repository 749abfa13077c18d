package main

import (
	"bufio"
	"encoding/base32"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gregLibert/ykoath/pkg/reader"
	"github.com/gregLibert/ykoath/pkg/ykoath"
)

var (
	readerName string

	addType    string
	addAlg     string
	addSecret  string
	addDigits  int
	addCounter uint32
	addTouch   bool

	resetForce   bool
	passwdRemove bool
)

func main() {
	root := &cobra.Command{
		Use:           "ykoath",
		Short:         "Manage OATH credentials on a YubiKey",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&readerName, "reader", "r", "", "smart card reader to use (substring match)")

	readersCmd := &cobra.Command{
		Use:   "readers",
		Short: "List attached smart card readers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			readers, err := reader.List()
			if err != nil {
				return err
			}
			for _, r := range readers {
				fmt.Println(r)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials stored on the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *ykoath.Session) error {
				creds, err := s.List()
				if err != nil {
					return err
				}
				for _, cred := range creds {
					fmt.Printf("%-48s %s %s\n", cred.Name, cred.Type, cred.Algorithm)
				}
				return nil
			})
		},
	}

	codeCmd := &cobra.Command{
		Use:   "code [name]",
		Short: "Calculate one-time codes",
		Long: `Calculate one-time codes.

Without an argument, codes for all stored credentials are calculated in a
single exchange. With a credential name, only that code is calculated; this
is also how HOTP and touch-protected credentials are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *ykoath.Session) error {
				if len(args) == 1 {
					return printOne(s, args[0])
				}
				return printAll(s)
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store a new credential on the device",
		Long: `Store a new credential on the device.

The name follows the usual "[period/][issuer:]account" convention; a period
prefix such as "60/" selects a non-default TOTP time step. Storing a name
that already exists overwrites the existing credential.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, secret, err := buildCredential(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *ykoath.Session) error {
				return s.Put(cred, secret)
			})
		},
	}
	addCmd.Flags().StringVar(&addSecret, "secret", "", "base32-encoded secret (prompted for when omitted)")
	addCmd.Flags().StringVar(&addType, "type", "totp", "credential type: totp or hotp")
	addCmd.Flags().StringVar(&addAlg, "algorithm", "sha1", "HMAC algorithm: sha1, sha256 or sha512")
	addCmd.Flags().IntVar(&addDigits, "digits", 6, "code length: 6 or 8")
	addCmd.Flags().Uint32Var(&addCounter, "counter", 0, "initial counter value (hotp only)")
	addCmd.Flags().BoolVar(&addTouch, "touch", false, "require physical touch for each code")

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a credential from the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *ykoath.Session) error {
				return s.Delete(args[0])
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Factory-reset the OATH applet",
		Long:  "Factory-reset the OATH applet, erasing every credential and the password.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !resetForce && !confirm("This erases ALL credentials on the device. Type 'yes' to continue: ") {
				return errors.New("reset aborted")
			}
			// Reset is the recovery path for a forgotten password, so it
			// must not require validation first.
			return withLockedSession(func(s *ykoath.Session) error {
				return s.Reset()
			})
		},
	}
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip the confirmation prompt")

	passwdCmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set or remove the device password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *ykoath.Session) error {
				if passwdRemove {
					return s.RemovePassword()
				}
				password, err := promptSecret("New password: ")
				if err != nil {
					return err
				}
				again, err := promptSecret("Repeat password: ")
				if err != nil {
					return err
				}
				if password != again {
					return errors.New("passwords do not match")
				}
				return s.SetPassword(password)
			})
		},
	}
	passwdCmd.Flags().BoolVar(&passwdRemove, "remove", false, "remove the password instead of setting one")

	root.AddCommand(readersCmd, listCmd, codeCmd, addCmd, removeCmd, resetCmd, passwdCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withSession connects to the device, selects the applet and unlocks it
// (prompting for the password on protected devices) before running fn.
func withSession(fn func(*ykoath.Session) error) error {
	return withLockedSession(func(s *ykoath.Session) error {
		if s.State() == ykoath.StateLocked {
			password, err := promptSecret("Device password: ")
			if err != nil {
				return err
			}
			if err := s.Validate(password); err != nil {
				return err
			}
		}
		return fn(s)
	})
}

// withLockedSession connects and selects but does not authenticate; reset
// needs to work against a device whose password was forgotten.
func withLockedSession(fn func(*ykoath.Session) error) error {
	card, err := reader.Connect(readerName)
	if err != nil {
		return err
	}
	defer card.Close()

	s := ykoath.NewSession(card)
	s.SetTimeout(15 * time.Second)
	if err := s.Select(); err != nil {
		return err
	}
	return fn(s)
}

func printOne(s *ykoath.Session, name string) error {
	code, err := s.GetCode(name, time.Now())
	if errors.Is(err, ykoath.ErrTouchRequired) {
		fmt.Fprintln(os.Stderr, "Touch your YubiKey...")
		code, err = s.GetCode(name, time.Now())
	}
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}

func printAll(s *ykoath.Session) error {
	codes, err := s.Codes(time.Now())
	if err != nil {
		return err
	}
	for _, nc := range codes {
		switch {
		case nc.TouchRequired:
			fmt.Printf("%-48s %s\n", nc.Name, "[requires touch]")
		case nc.HOTP:
			fmt.Printf("%-48s %s\n", nc.Name, "[hotp]")
		default:
			fmt.Printf("%-48s %s\n", nc.Name, nc.Code)
		}
	}
	return nil
}

func buildCredential(name string) (ykoath.Credential, []byte, error) {
	cred := ykoath.Credential{
		Name:          name,
		Digits:        addDigits,
		Counter:       addCounter,
		TouchRequired: addTouch,
	}

	switch strings.ToLower(addType) {
	case "totp":
		cred.Type = ykoath.TOTP
	case "hotp":
		cred.Type = ykoath.HOTP
	default:
		return ykoath.Credential{}, nil, fmt.Errorf("unknown credential type %q", addType)
	}

	switch strings.ToLower(addAlg) {
	case "sha1":
		cred.Algorithm = ykoath.SHA1
	case "sha256":
		cred.Algorithm = ykoath.SHA256
	case "sha512":
		cred.Algorithm = ykoath.SHA512
	default:
		return ykoath.Credential{}, nil, fmt.Errorf("unknown algorithm %q", addAlg)
	}

	encoded := addSecret
	if encoded == "" {
		var err error
		encoded, err = promptSecret("Secret (base32): ")
		if err != nil {
			return ykoath.Credential{}, nil, err
		}
	}

	secret, err := decodeBase32(encoded)
	if err != nil {
		return ykoath.Credential{}, nil, fmt.Errorf("decoding secret: %w", err)
	}
	return cred, secret, nil
}

// decodeBase32 is lenient the way enrollment QR codes require: whitespace,
// dashes and case are ignored, missing padding is tolerated.
func decodeBase32(s string) ([]byte, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "-", ""))
	s = strings.TrimRight(s, "=")
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		return string(secret), err
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
