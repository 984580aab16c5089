package sanitize

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSanitizeDropsUnnamedAndBlankColumns(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "order-2024.csv", ",id,Unnamed: 2,amount, \n0,A1,x,10,y\n1,A2,z,20,w\n")

	cleaned, err := Sanitize(input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "order-2024-cleaned.csv"), cleaned)
	assert.Equal(t, [][]string{
		{"id", "amount"},
		{"A1", "10"},
		{"A2", "20"},
	}, readCSV(t, cleaned))

	_, statErr := os.Stat(input)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "original should be removed")
}

func TestSanitizeHandlesRaggedRowsAndBOM(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "customer.csv", "\xEF\xBB\xBFname,city\nAlice\nBob,Paris,extra\n")

	cleaned, err := Sanitize(input)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"name", "city"},
		{"Alice", ""},
		{"Bob", "Paris"},
	}, readCSV(t, cleaned))
}

func TestSanitizeIsIdempotentOnColumnSelection(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "product.csv", "Unnamed: 0,sku,price\n0,P1,3.5\n1,P2,4.0\n")

	first, err := Sanitize(input)
	require.NoError(t, err)
	firstRecords := readCSV(t, first)

	second, err := Sanitize(first)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstRecords, readCSV(t, second))
	assert.Equal(t, []int{0, 1}, ValidColumns(firstRecords[0]))
}

func TestSanitizeMalformedInputLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "order-bad.csv", "name,\"age\nAlice,30\n")

	_, err := Sanitize(input)
	require.Error(t, err)

	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, input, malformed.Path)

	_, statErr := os.Stat(input)
	assert.NoError(t, statErr, "original must stay for inspection")
	_, statErr = os.Stat(CleanedPath(input))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSanitizeEmptyFileIsMalformed(t *testing.T) {
	input := writeFile(t, t.TempDir(), "order-empty.csv", "  \n")

	_, err := Sanitize(input)

	var malformed *MalformedInputError
	assert.True(t, errors.As(err, &malformed))
}

func TestSanitizeWithoutValidColumnsIsMalformed(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "order-1.csv", "Unnamed: 0,\n0,x\n1,y\n")

	_, err := Sanitize(input)

	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.ErrorContains(t, err, "no columns with a valid header")

	_, statErr := os.Stat(input)
	assert.NoError(t, statErr, "original must stay for inspection")
	_, statErr = os.Stat(CleanedPath(input))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSanitizeRemoveFailureKeepsOnlyOriginal(t *testing.T) {
	removeFile = func(string) error { return errors.New("device busy") }
	t.Cleanup(func() { removeFile = os.Remove })

	dir := t.TempDir()
	input := writeFile(t, dir, "order-1.csv", "id,name\n1,a\n")

	_, err := Sanitize(input)
	require.Error(t, err)

	var malformed *MalformedInputError
	assert.False(t, errors.As(err, &malformed), "input parsed fine")

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "order-1.csv", entries[0].Name())
}

func TestSanitizeExcelInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "location.xlsx")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"Unnamed: 0", "code", "label"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{0, "L1", "North"}))
	require.NoError(t, book.SaveAs(input))
	require.NoError(t, book.Close())

	cleaned, err := Sanitize(input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "location-cleaned.csv"), cleaned)
	assert.Equal(t, [][]string{{"code", "label"}, {"L1", "North"}}, readCSV(t, cleaned))
}

func TestCleanedPath(t *testing.T) {
	assert.Equal(t, "/w/order-1-cleaned.csv", CleanedPath("/w/order-1.csv"))
	assert.Equal(t, "/w/order-1-cleaned.csv", CleanedPath("/w/order-1-cleaned.csv"))
	assert.Equal(t, "/w/order-1-cleaned.csv", CleanedPath("/w/order-1.xlsx"))
	assert.Equal(t, "/w/order-cleaned.csv", CleanedPath("/w/order"))
}
