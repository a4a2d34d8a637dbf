package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("prints a success line without a spinner on plain writers", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "saving snapshot", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())

		out := buf.String()
		Expect(out).To(ContainSubstring("✓"))
		Expect(out).To(ContainSubstring("saving snapshot"))
		Expect(strings.Count(out, "\r")).To(Equal(1))
	})

	It("returns the error and prints a failure mark", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		Expect(cliui.Step(&buf, "loading", func() error { return boom })).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("✗"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("KeyValues", func() {
	It("sorts keys and aligns values", func() {
		out := cliui.KeyValues(map[string]string{"messages": "3", "id": "x"})
		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(ContainSubstring("id"))
		Expect(lines[0]).To(HaveSuffix("        x"))
		Expect(lines[1]).To(HaveSuffix("  3"))
	})
})
