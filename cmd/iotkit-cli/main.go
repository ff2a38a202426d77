package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := newSession(ctx)
	if err != nil {
		fatal("init", err)
	}

	switch os.Args[1] {
	case "accounts":
		accountsCmd(ctx, session, os.Args[2:])
	case "devices":
		devicesCmd(ctx, session, os.Args[2:])
	case "components":
		componentsCmd(ctx, session, os.Args[2:])
	case "data":
		dataCmd(ctx, session, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func accountsCmd(ctx context.Context, s *session, args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			fatal("accounts create", fmt.Errorf("missing account name"))
		}
		var account *iotkit.Account
		err := s.call(ctx, func() error {
			var err error
			account, err = s.client.CreateAccount(ctx, args[1])
			return err
		})
		if err != nil {
			fatal("create account", err)
		}
		fmt.Printf("%s\t%s\n", account.AccountID, account.Name)
	default:
		usage()
		os.Exit(2)
	}
}

func devicesCmd(ctx context.Context, s *session, args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	account := s.account()

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("devices list", flag.ExitOnError)
		asJSON := fs.Bool("json", false, "print raw JSON")
		_ = fs.Parse(args[1:])

		var devices []*iotkit.Device
		err := s.call(ctx, func() error {
			var err error
			devices, err = account.Devices(ctx)
			return err
		})
		if err != nil {
			fatal("list devices", err)
		}
		printDevices(devices, *asJSON)

	case "create":
		fs := flag.NewFlagSet("devices create", flag.ExitOnError)
		gateway := fs.String("gateway", "", "gateway id (defaults to the device id)")
		_ = fs.Parse(args[1:])
		if fs.NArg() < 2 {
			fatal("devices create", fmt.Errorf("usage: devices create <deviceId> <name>"))
		}

		var device *iotkit.Device
		err := s.call(ctx, func() error {
			var err error
			device, err = account.CreateDevice(ctx, fs.Arg(0), fs.Arg(1), *gateway)
			return err
		})
		if err != nil {
			fatal("create device", err)
		}
		printDevices([]*iotkit.Device{device}, false)

	case "delete":
		device := s.resolveDevice(ctx, account, args[1:], "devices delete")
		if err := s.call(ctx, func() error { return device.Delete(ctx) }); err != nil {
			fatal("delete device", err)
		}
		log.Info().Str("device", device.DeviceID).Msg("deleted")

	case "activate":
		device := s.resolveDevice(ctx, account, args[1:], "devices activate")
		code := ""
		if len(args) > 2 {
			code = args[2]
		}
		var deviceToken string
		err := s.call(ctx, func() error {
			var err error
			deviceToken, err = device.Activate(ctx, code)
			return err
		})
		if err != nil {
			fatal("activate device", err)
		}
		fmt.Println(deviceToken)

	case "update":
		fs := flag.NewFlagSet("devices update", flag.ExitOnError)
		name := fs.String("name", "", "new device name")
		gateway := fs.String("gateway", "", "new gateway id")
		if len(args) < 2 {
			fatal("devices update", fmt.Errorf("usage: devices update <device> [-name ...] [-gateway ...]"))
		}
		_ = fs.Parse(args[2:])

		device := s.resolveDevice(ctx, account, args[1:2], "devices update")
		update := iotkit.PropertyUpdate{Name: *name, GatewayID: *gateway}
		if err := s.call(ctx, func() error { return device.SetProperties(ctx, update) }); err != nil {
			fatal("update device", err)
		}
		printDevices([]*iotkit.Device{device}, false)

	default:
		usage()
		os.Exit(2)
	}
}

func componentsCmd(ctx context.Context, s *session, args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	account := s.account()

	switch args[0] {
	case "add":
		if len(args) < 4 {
			fatal("components add", fmt.Errorf("usage: components add <device> <name> <type> [cid]"))
		}
		device := s.resolveDevice(ctx, account, args[1:2], "components add")
		cid := ""
		if len(args) > 4 {
			cid = args[4]
		}
		var component map[string]any
		err := s.call(ctx, func() error {
			var err error
			component, err = device.AddComponent(ctx, args[2], args[3], cid)
			return err
		})
		if err != nil {
			fatal("add component", err)
		}
		printJSON(component)

	case "delete":
		if len(args) < 3 {
			fatal("components delete", fmt.Errorf("usage: components delete <device> <cid>"))
		}
		device := s.resolveDevice(ctx, account, args[1:2], "components delete")
		if err := s.call(ctx, func() error { return device.DeleteComponent(ctx, args[2]) }); err != nil {
			fatal("delete component", err)
		}
		log.Info().Str("device", device.DeviceID).Str("cid", args[2]).Msg("component deleted")

	default:
		usage()
		os.Exit(2)
	}
}

func dataCmd(ctx context.Context, s *session, args []string) {
	if len(args) < 1 || args[0] != "submit" {
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet("data submit", flag.ExitOnError)
	deviceToken := fs.String("token", "", "device security token from activation")
	if len(args) < 4 {
		fatal("data submit", fmt.Errorf("usage: data submit <device> <cid> <value> -token <deviceToken>"))
	}
	_ = fs.Parse(args[4:])
	if *deviceToken == "" {
		fatal("data submit", fmt.Errorf("-token is required"))
	}

	account := s.account()
	device := s.resolveDevice(ctx, account, args[1:2], "data submit")

	observation := iotkit.Observation{
		ComponentID: args[2],
		On:          time.Now().UnixMilli(),
		Value:       args[3],
	}
	if err := device.SubmitData(ctx, *deviceToken, observation); err != nil {
		fatal("submit data", err)
	}
	log.Info().Str("device", device.DeviceID).Str("cid", args[2]).Msg("observation submitted")
}

// resolveDevice looks the device up in the account inventory.
func (s *session) resolveDevice(ctx context.Context, account *iotkit.Account, args []string, op string) *iotkit.Device {
	if len(args) < 1 {
		fatal(op, fmt.Errorf("missing device id or name"))
	}

	var devices []*iotkit.Device
	err := s.call(ctx, func() error {
		var err error
		devices, err = account.Devices(ctx)
		return err
	})
	if err != nil {
		fatal("list devices", err)
	}

	device, err := matchDevice(devices, args[0])
	if err != nil {
		fatal(op, err)
	}
	return device
}

// matchDevice picks the device a query names: an exact device id wins,
// then a case-insensitive name match, then a unique device id prefix so
// generated ids can be abbreviated on the command line.
func matchDevice(devices []*iotkit.Device, query string) (*iotkit.Device, error) {
	for _, device := range devices {
		if device.DeviceID == query {
			return device, nil
		}
	}
	for _, device := range devices {
		if strings.EqualFold(device.Name, query) {
			return device, nil
		}
	}

	var prefixed []*iotkit.Device
	if query != "" {
		for _, device := range devices {
			if strings.HasPrefix(device.DeviceID, query) {
				prefixed = append(prefixed, device)
			}
		}
	}
	switch len(prefixed) {
	case 1:
		return prefixed[0], nil
	case 0:
		return nil, fmt.Errorf("no device matches %q; run `iotkit-cli devices list` to see what is registered", query)
	default:
		ids := make([]string, 0, len(prefixed))
		for _, device := range prefixed {
			ids = append(ids, device.DeviceID)
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("device id prefix %q is ambiguous: %s", query, strings.Join(ids, ", "))
	}
}

// call runs op and, when the API answers 401, re-authenticates once and
// retries. Token refresh lives here rather than in the transport.
func (s *session) call(ctx context.Context, op func() error) error {
	err := op()
	var respErr iotkit.UnexpectedResponseError
	if !errors.As(err, &respErr) || respErr.Status != http.StatusUnauthorized {
		return err
	}

	log.Debug().Msg("token rejected; re-authenticating")
	if err := s.authenticate(ctx); err != nil {
		return err
	}
	return op()
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: iotkit-cli <command> [args]

commands:
  accounts create <name>
  devices list [-json]
  devices create <deviceId> <name> [-gateway id]
  devices delete <device>
  devices activate <device> [activationCode]
  devices update <device> [-name name] [-gateway id]
  components add <device> <name> <type> [cid]
  components delete <device> <cid>
  data submit <device> <cid> <value> -token <deviceToken>

The account is selected with IOTKIT_ACCOUNT_ID; credentials come from
IOTKIT_URL, IOTKIT_USERNAME and IOTKIT_PASSWORD.`)
}

func fatal(op string, err error) {
	log.Error().Err(err).Msg(op)
	os.Exit(1)
}
