package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gomlx/devctx/queues"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"
)

// printCatalog prints one row per queue available for each supported key.
// Keys are enumerated concurrently.
func printCatalog(w io.Writer, m *queues.Manager) error {
	keys := queues.SupportedKeys()
	rowsPerKey := make([][][]string, len(keys))
	var g errgroup.Group
	for ii, key := range keys {
		g.Go(func() error {
			groups := m.Devices(key)
			if len(groups) == 0 {
				rowsPerKey[ii] = [][]string{{key.String(), "-", "no devices", ""}}
				return nil
			}
			for index, devices := range groups {
				if len(devices) == 0 {
					return errors.Errorf("%s queue #%d has no devices", key, index)
				}
				deviceNames := make([]string, len(devices))
				for jj, d := range devices {
					deviceNames[jj] = d.Name()
				}
				rowsPerKey[ii] = append(rowsPerKey[ii], []string{
					key.String(), strconv.Itoa(index), deviceNames[0], strings.Join(deviceNames, ", ")})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var data [][]string
	for _, rows := range rowsPerKey {
		data = append(data, rows...)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"KEY", "INDEX", "DEVICE", "CONTEXT DEVICES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	fmt.Fprintln(w)
	return nil
}

// printMetrics prints the gathered metrics in the prometheus text format.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	fmt.Fprintln(w)
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return errors.Wrapf(err, "failed to write metric %q", family.GetName())
		}
	}
	return nil
}
