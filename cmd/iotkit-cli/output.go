package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

func printDevices(devices []*iotkit.Device, asJSON bool) {
	if asJSON {
		printJSON(devices)
		return
	}

	rows := [][]string{{"DEVICE", "NAME", "STATUS", "GATEWAY", "CREATED"}}
	for _, device := range devices {
		created := ""
		if !device.CreatedOn.IsZero() {
			created = device.CreatedOn.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{device.DeviceID, device.Name, device.Status, device.GatewayID, created})
	}
	table(rows)
}

func printJSON(value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal("format json", err)
	}
	fmt.Println(string(data))
}

func table(rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, joinRow(row))
	}
	_ = w.Flush()
}

func joinRow(row []string) string {
	if len(row) == 0 {
		return ""
	}
	out := row[0]
	for i := 1; i < len(row); i++ {
		out += "\t" + row[i]
	}
	return out
}
