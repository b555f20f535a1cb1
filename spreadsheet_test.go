package sheetcalc

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetcalc/sheetcalc/internal/testutil"
)

// set applies an edit that must succeed and checks consistency afterwards.
func set(t *testing.T, s *Spreadsheet, name, raw string) []string {
	t.Helper()
	affected, err := s.SetContentsOfCell(name, raw)
	require.NoError(t, err, "SetContentsOfCell(%q, %q)", name, raw)
	require.NoError(t, s.Verify())
	return affected
}

func numberValue(t *testing.T, s *Spreadsheet, name string) float64 {
	t.Helper()
	v, err := s.GetCellValue(name)
	require.NoError(t, err)
	n, ok := v.Number()
	require.True(t, ok, "value of %s is %s (%s), want a number", name, v, v.Kind())
	return n
}

func errorReason(t *testing.T, s *Spreadsheet, name string) string {
	t.Helper()
	v, err := s.GetCellValue(name)
	require.NoError(t, err)
	ev, ok := v.Err()
	require.True(t, ok, "value of %s is %s (%s), want an error", name, v, v.Kind())
	return ev.Reason
}

func TestChainRecalculationOrder(t *testing.T) {
	s := New()
	testutil.SliceEqual(t, []string{"A1"}, set(t, s, "A1", "=A2+A3"))
	testutil.SliceEqual(t, []string{"A3", "A1"}, set(t, s, "A3", "=A2+A4"))
	testutil.SliceEqual(t, []string{"A4", "A3", "A1"}, set(t, s, "A4", "=A2+A5"))
	testutil.SliceEqual(t, []string{"A5", "A4", "A3", "A1"}, set(t, s, "A5", "82.5"))

	// A2 is still a placeholder.
	assert.Contains(t, errorReason(t, s, "A1"), "cell A2 is empty")

	got := set(t, s, "A2", "1")
	if diff := cmp.Diff([]string{"A2", "A4", "A3", "A1"}, got); diff != "" {
		t.Errorf("affected cells (-want +got):\n%s", diff)
	}
	assert.Equal(t, 83.5, numberValue(t, s, "A4"))
	assert.Equal(t, 84.5, numberValue(t, s, "A3"))
	assert.Equal(t, 85.5, numberValue(t, s, "A1"))
}

func TestSelfReferenceIsCircular(t *testing.T) {
	s := New()
	_, err := s.SetContentsOfCell("A1", "=A1")

	ce := testutil.ErrorAs[*CircularError](t, err)
	testutil.Equal(t, "A1", ce.Cell)
	testutil.SliceEqual(t, []string{"A1", "A1"}, ce.Path)
	testutil.Len(t, s.NonemptyCellNames(), 0)
	testutil.Equal(t, 0, len(s.cells), "no placeholder left behind")
	testutil.Equal(t, 0, s.deps.Size())
	testutil.False(t, s.Changed(), "rejected edit does not mark the sheet changed")
	require.NoError(t, s.Verify())
}

func TestIndirectCycleRollsBack(t *testing.T) {
	s := New()
	set(t, s, "A1", "=A2")

	_, err := s.SetContentsOfCell("A2", "=A1")
	var ce *CircularError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"A2", "A1", "A2"}, ce.Path)

	contents, err := s.GetCellContents("A2")
	require.NoError(t, err)
	assert.Equal(t, "", contents.String())
	assert.Equal(t, ContentEmpty, contents.Kind())
	assert.Equal(t, []string{"A1"}, s.NonemptyCellNames())
	assert.Equal(t, []string{"A1"}, s.DirectDependents("A2"))
	require.NoError(t, s.Verify())
}

func TestCycleRestoresPreviousContents(t *testing.T) {
	s := New()
	set(t, s, "A1", "5")
	set(t, s, "B1", "=A1*2")
	set(t, s, "C1", "=B1+1")
	s.SetChanged(false)

	_, err := s.SetContentsOfCell("A1", "=C1+D1")
	testutil.ErrorAs[*CircularError](t, err)

	contents, err := s.GetCellContents("A1")
	require.NoError(t, err)
	n, ok := contents.Number()
	require.True(t, ok)
	assert.Equal(t, 5.0, n)
	assert.Equal(t, 5.0, numberValue(t, s, "A1"))
	assert.Equal(t, 10.0, numberValue(t, s, "B1"))
	assert.Equal(t, 11.0, numberValue(t, s, "C1"))
	assert.Empty(t, s.deps.Dependees("A1"))
	assert.NotContains(t, s.cells, "D1", "placeholder created by the rejected edit is dropped")
	assert.False(t, s.Changed())
	require.NoError(t, s.Verify())
}

func TestCycleKeepsExistingPlaceholders(t *testing.T) {
	s := New()
	set(t, s, "B1", "=Z1")
	set(t, s, "A1", "=B1")

	// Z1 already existed as a placeholder and must survive the rollback.
	_, err := s.SetContentsOfCell("B1", "=Z1+A1")
	testutil.ErrorAs[*CircularError](t, err)
	assert.Contains(t, s.cells, "Z1")
	assert.Equal(t, []string{"Z1"}, s.deps.Dependees("B1"))
	require.NoError(t, s.Verify())
}

func TestInvalidNames(t *testing.T) {
	s := New()
	for _, name := range []string{"", "A", "1A", "A1B", "A_1", "a 1"} {
		_, err := s.SetContentsOfCell(name, "1")
		ine := testutil.ErrorAs[*InvalidNameError](t, err, "name %q", name)
		testutil.Equal(t, name, ine.Name)

		_, err = s.GetCellContents(name)
		testutil.ErrorAs[*InvalidNameError](t, err, "GetCellContents(%q)", name)
		_, err = s.GetCellValue(name)
		testutil.ErrorAs[*InvalidNameError](t, err, "GetCellValue(%q)", name)
	}
	testutil.Len(t, s.NonemptyCellNames(), 0)
	testutil.False(t, s.Changed(), "failed edits do not mark the sheet changed")
}

func TestFormulaVariableMustBeValidName(t *testing.T) {
	s := New()
	_, err := s.SetContentsOfCell("A1", "=x+1")
	fe := testutil.ErrorAs[*FormatError](t, err)
	testutil.Contains(t, fe.Msg, `"x" is not a valid variable`)
	testutil.Equal(t, 0, len(s.cells))
}

func TestFormatErrorIsReturnedUnchanged(t *testing.T) {
	s := New()
	set(t, s, "A1", "3")
	_, err := s.SetContentsOfCell("A1", "=5+")

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "5+", fe.Expr)
	assert.Equal(t, 3.0, numberValue(t, s, "A1"), "failed edit leaves the cell alone")
}

func TestClassifyContents(t *testing.T) {
	tests := []struct {
		raw      string
		kind     ContentKind
		stringed string
	}{
		{"5", ContentNumber, "5"},
		{" -2.5 ", ContentNumber, "-2.5"},
		{"+3", ContentNumber, "3"},
		{"1e3", ContentNumber, "1000"},
		{".5", ContentNumber, "0.5"},
		{"1e400", ContentText, "1e400"},
		{"12abc", ContentText, "12abc"},
		{"- 5", ContentText, "- 5"},
		{"hello", ContentText, "hello"},
		{"=", ContentText, "="},
		{"= A1 + 2", ContentFormula, "=A1+2"},
		{"", ContentEmpty, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s := New()
			_, err := s.SetContentsOfCell("B1", tt.raw)
			testutil.NoError(t, err)
			c, err := s.GetCellContents("B1")
			testutil.NoError(t, err)
			testutil.Equal(t, tt.kind, c.Kind())
			testutil.Equal(t, tt.stringed, c.String())
		})
	}
}

func TestValues(t *testing.T) {
	s := New()
	set(t, s, "A1", "hello")
	set(t, s, "A2", "4")
	set(t, s, "A3", "=A2/2")

	v, err := s.GetCellValue("A1")
	require.NoError(t, err)
	text, ok := v.Text()
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	assert.Equal(t, 2.0, numberValue(t, s, "A3"))

	v, err = s.GetCellValue("Z99")
	require.NoError(t, err)
	assert.Equal(t, ValueEmpty, v.Kind(), "unknown cells are empty")
}

func TestErrorValuesPropagate(t *testing.T) {
	s := New()
	set(t, s, "A1", "=1/0")
	set(t, s, "B1", "=A1+1")
	set(t, s, "C1", "=B1*2")
	set(t, s, "D1", "7")

	assert.Equal(t, "division by zero", errorReason(t, s, "A1"))
	assert.Contains(t, errorReason(t, s, "B1"), "division by zero")
	assert.Contains(t, errorReason(t, s, "C1"), "division by zero")
	assert.Equal(t, 7.0, numberValue(t, s, "D1"), "unrelated cells are unaffected")

	// Fixing the source clears the downstream errors.
	affected := set(t, s, "A1", "3")
	assert.Equal(t, []string{"A1", "B1", "C1"}, affected)
	assert.Equal(t, 8.0, numberValue(t, s, "C1"))
}

func TestTextReferenceIsError(t *testing.T) {
	s := New()
	set(t, s, "A1", "hello")
	set(t, s, "B1", "=A1")
	assert.Contains(t, errorReason(t, s, "B1"), "cell A1 contains text")
}

func TestClearRemovesCellAndPlaceholders(t *testing.T) {
	s := New()
	set(t, s, "A1", "=B1+C1")
	assert.Equal(t, []string{"A1"}, s.NonemptyCellNames(), "placeholders are not nonempty")
	assert.Len(t, s.cells, 3)

	affected := set(t, s, "A1", "")
	assert.Equal(t, []string{"A1"}, affected)
	assert.Empty(t, s.NonemptyCellNames())
	assert.Empty(t, s.cells, "cleared cell and its placeholders are gone")
	assert.Equal(t, 0, s.deps.Size())
}

func TestClearKeepsReferencedCell(t *testing.T) {
	s := New()
	set(t, s, "A1", "5")
	set(t, s, "B1", "=A1")

	affected := set(t, s, "A1", "")
	assert.Equal(t, []string{"A1", "B1"}, affected)
	assert.Equal(t, []string{"B1"}, s.NonemptyCellNames())
	assert.Contains(t, s.cells, "A1", "cleared cell stays as a placeholder")
	assert.Contains(t, errorReason(t, s, "B1"), "cell A1 is empty")
}

func TestReplacingFormulaDropsOrphans(t *testing.T) {
	s := New()
	set(t, s, "A1", "=B1")
	set(t, s, "C1", "=B1")
	set(t, s, "A1", "=D1")

	assert.Contains(t, s.cells, "B1", "still referenced by C1")
	assert.Contains(t, s.cells, "D1")

	set(t, s, "C1", "1")
	assert.NotContains(t, s.cells, "B1")
	assert.Equal(t, []string{"A1", "C1"}, s.NonemptyCellNames())
}

func TestReplacingFormulaKeepsContentDependees(t *testing.T) {
	s := New()
	set(t, s, "B1", "2")
	set(t, s, "A1", "=B1")
	set(t, s, "A1", "1")
	assert.Equal(t, []string{"A1", "B1"}, s.NonemptyCellNames(), "cells with contents are never dropped")
}

func TestNormalizer(t *testing.T) {
	s := New(WithNormalizer(strings.ToUpper))
	set(t, s, "a1", "2")
	set(t, s, "b1", "=a1*10")

	assert.Equal(t, []string{"A1", "B1"}, s.NonemptyCellNames())
	assert.Equal(t, 20.0, numberValue(t, s, "B1"))
	assert.Equal(t, 20.0, numberValue(t, s, "b1"))

	c, err := s.GetCellContents("b1")
	require.NoError(t, err)
	assert.Equal(t, "=A1*10", c.String())
	assert.Equal(t, []string{"B1"}, s.DirectDependents("a1"))
}

func TestValidator(t *testing.T) {
	onlyX := func(name string) bool { return strings.HasPrefix(name, "X") }
	s := New(WithValidator(onlyX))
	set(t, s, "Xa", "1")
	set(t, s, "Xb", "=Xa+1")

	_, err := s.SetContentsOfCell("A1", "1")
	testutil.ErrorAs[*InvalidNameError](t, err)
	_, err = s.SetContentsOfCell("Xc", "=A1")
	testutil.ErrorAs[*FormatError](t, err)
}

func TestChangedFlag(t *testing.T) {
	s := New()
	testutil.False(t, s.Changed(), "new sheet")
	set(t, s, "A1", "1")
	testutil.True(t, s.Changed(), "after edit")
	s.SetChanged(false)
	testutil.False(t, s.Changed(), "after reset")
	set(t, s, "A1", "")
	testutil.True(t, s.Changed(), "clearing is an edit")
}

func TestIndependentInstances(t *testing.T) {
	a, b := New(), New(WithVersion("v2"))
	set(t, a, "A1", "1")
	testutil.Len(t, b.NonemptyCellNames(), 0)
	testutil.Equal(t, DefaultVersion, a.Version())
	testutil.Equal(t, "v2", b.Version())
}

func TestDiamondDependencies(t *testing.T) {
	s := New()
	set(t, s, "B1", "=A1+1")
	set(t, s, "C1", "=A1*2")
	set(t, s, "D1", "=B1+C1")

	affected := set(t, s, "A1", "10")
	testutil.Equal(t, "A1", affected[0])
	testutil.Equal(t, "D1", affected[len(affected)-1])
	testutil.Len(t, affected, 4)
	testutil.Equal(t, 31.0, numberValue(t, s, "D1"))
}

func TestRecalculateAll(t *testing.T) {
	s := New()
	set(t, s, "A1", "2")
	set(t, s, "B1", "=A1*3")
	set(t, s, "C1", "=1+1")
	set(t, s, "D1", "=B1+A1")

	// Corrupt the cache, then rebuild it.
	for _, c := range s.cells {
		c.value = Value{}
	}
	order := s.RecalculateAll()
	assert.Equal(t, []string{"C1", "B1", "D1"}, order)
	assert.Equal(t, 2.0, numberValue(t, s, "A1"))
	assert.Equal(t, 6.0, numberValue(t, s, "B1"))
	assert.Equal(t, 2.0, numberValue(t, s, "C1"))
	assert.Equal(t, 8.0, numberValue(t, s, "D1"))
}

func TestVerifyDetectsDrift(t *testing.T) {
	s := New()
	set(t, s, "A1", "=B1")

	s.deps.AddDependency("C1", "A1")
	require.Error(t, s.Verify())
	s.deps.RemoveDependency("C1", "A1")
	require.NoError(t, s.Verify())

	s.cells["Z1"] = &cell{}
	assert.ErrorContains(t, s.Verify(), "placeholder Z1")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))
	s := New(WithLogger(logger))

	set(t, s, "A1", "1")
	set(t, s, "B1", "=A1")
	_, err := s.SetContentsOfCell("A1", "=B1")
	require.True(t, errors.As(err, new(*CircularError)))

	out := buf.String()
	assert.Contains(t, out, "component=engine")
	assert.Contains(t, out, "cell set")
	assert.Contains(t, out, "recomputed")
	assert.Contains(t, out, "circular reference")
}

func TestNoLoggerIsSilent(t *testing.T) {
	s := New(WithLogger(nil))
	set(t, s, "A1", "=B1")
	_, err := s.SetContentsOfCell("B1", "=A1")
	testutil.Error(t, err)
}
