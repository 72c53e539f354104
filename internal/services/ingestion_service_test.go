package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestIngestDirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		StatusFile: "store_id,status,timestamp_utc\n" +
			"8419537941919820732,active,2023-01-22 12:09:39.388884 UTC\n" +
			"8419537941919820732,inactive,2023-01-22 13:09:39.388884 UTC\n" +
			"8419537941919820732,unknown,2023-01-22 14:09:39 UTC\n" +
			"54515546588432327,active,not a time\n" +
			"54515546588432327,active,2023-01-24 09:06:42.605777 UTC\n",
		BusinessHoursFile: "store_id,dayOfWeek,start_time_local,end_time_local\n" +
			"8419537941919820732,0,00:00:00,00:10:00\n" +
			"8419537941919820732,9,00:00:00,00:10:00\n" +
			"8419537941919820732,1\n",
		// columns in a different order
		TimezonesFile: "timezone_str,store_id\n" +
			"Asia/Beirut,8419537941919820732\n",
	})

	repo := repository.NewMemoryStoreRepository()
	m := metrics.NewNopCollector()
	svc := NewIngestionService(repo, logging.NewNopLogger(), m)

	result, err := svc.IngestDirectory(context.Background(), dir, IngestOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 9, result.TotalRecords)
	assert.Equal(t, 5, result.SuccessfulRecords)
	assert.Equal(t, 4, result.FailedRecords)
	assert.Len(t, result.Errors, 4)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "store_status line 4")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("validation_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("parse_error")))

	ds, err := repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"54515546588432327", "8419537941919820732"}, ds.StoreIDs(models.UniverseObservations))
	assert.Len(t, ds.Observations("8419537941919820732"), 2)
	assert.Len(t, ds.Rules("8419537941919820732"), 1)
	zone, _ := ds.Timezone("8419537941919820732")
	assert.Equal(t, "Asia/Beirut", zone)
	assert.True(t, ds.ReferenceTime().Equal(time.Date(2023, 1, 24, 9, 6, 42, 605777000, time.UTC)))
}

func TestIngestDirectory_LogsMissingFilesByPath(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		StatusFile: "store_id,status,timestamp_utc\n" +
			"s1,active,2023-01-22 12:09:39 UTC\n",
	})

	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "1.0.0", logging.WarnLevel)
	logger.SetOutput(&buf)

	svc := NewIngestionService(repository.NewMemoryStoreRepository(), logger, metrics.NewNopCollector())
	result, err := svc.IngestDirectory(context.Background(), dir, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalFiles)
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var paths []interface{}
	for _, line := range lines {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Contains(t, entry.Message, "[INGEST_FILE_MISSING]")
		paths = append(paths, entry.Fields["file_path"])
	}
	assert.ElementsMatch(t, []interface{}{
		filepath.Join(dir, BusinessHoursFile),
		filepath.Join(dir, TimezonesFile),
	}, paths)
}

func TestIngestDirectory_Truncate(t *testing.T) {
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{
		StatusFile: "store_id,status,timestamp_utc\ns1,active,2023-01-22 12:00:00 UTC\n",
	})

	repo := repository.NewMemoryStoreRepository()
	svc := NewIngestionService(repo, logging.NewNopLogger(), metrics.NewNopCollector())

	_, err := svc.IngestDirectory(ctx, dir, IngestOptions{})
	require.NoError(t, err)
	_, err = svc.IngestDirectory(ctx, dir, IngestOptions{})
	require.NoError(t, err)
	ds, _ := repo.LoadSnapshot(ctx)
	assert.Len(t, ds.Observations("s1"), 2)

	result, err := svc.IngestDirectory(ctx, dir, IngestOptions{Truncate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalFiles)
	ds, _ = repo.LoadSnapshot(ctx)
	assert.Len(t, ds.Observations("s1"), 1)
}

func TestIngestDirectory_NoFiles(t *testing.T) {
	svc := NewIngestionService(repository.NewMemoryStoreRepository(), logging.NewNopLogger(), metrics.NewNopCollector())
	_, err := svc.IngestDirectory(context.Background(), t.TempDir(), IngestOptions{})
	assert.Error(t, err)
}

func TestIngestDirectory_MissingColumn(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		StatusFile:    "store_id,timestamp_utc\ns1,2023-01-22 12:00:00 UTC\n",
		TimezonesFile: "store_id,timezone_str\ns1,UTC\n",
	})
	svc := NewIngestionService(repository.NewMemoryStoreRepository(), logging.NewNopLogger(), metrics.NewNopCollector())

	result, err := svc.IngestDirectory(context.Background(), dir, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `missing required column "status"`)
	assert.Equal(t, 1, result.SuccessfulRecords)
}

func TestIngestStatus_HeaderVariants(t *testing.T) {
	repo := repository.NewMemoryStoreRepository()
	svc := NewIngestionService(repo, logging.NewNopLogger(), metrics.NewNopCollector())

	input := "\ufeffStore_ID, Timestamp_UTC ,STATUS\ns1,2023-01-22T12:00:00Z,Active\n"
	res, err := svc.IngestStatus(context.Background(), strings.NewReader(input), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessfulRecords)
	assert.Equal(t, "store_status", res.Dataset)
}

func TestIngestStatus_EmptyInput(t *testing.T) {
	svc := NewIngestionService(repository.NewMemoryStoreRepository(), logging.NewNopLogger(), metrics.NewNopCollector())
	_, err := svc.IngestStatus(context.Background(), strings.NewReader(""), 10)
	assert.Error(t, err)
}
