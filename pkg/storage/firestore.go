package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each record is a document holding the JSON encoded record plus
// the fields used for filtering and ordering.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project id is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// tsDocID formats t as a document id that sorts chronologically.
func tsDocID(t time.Time) string {
	return formatTS(t)
}

func withJSON(v any, fields map[string]interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields["json"] = string(b)
	return fields, nil
}

// updatesFrom converts document fields into a field update list so that the
// write fails with NotFound when the document is missing.
func updatesFrom(fields map[string]interface{}) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

func decodeDoc[T any](ctx context.Context, doc *firestore.DocumentSnapshot) (T, error) {
	var v T
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return v, fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return v, fmt.Errorf("document %s 'json' field is not string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return v, fmt.Errorf("failed to unmarshal document (id=%s): %w", doc.Ref.ID, err)
	}
	return v, nil
}

func collect[T any](ctx context.Context, iter *firestore.DocumentIterator) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating documents: %w", err)
		}
		v, err := decodeDoc[T](ctx, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (T, error) {
	doc, err := ref.Get(ctx)
	if err != nil {
		var v T
		if status.Code(err) == codes.NotFound {
			return v, fmt.Errorf("%s %s: %w", ref.Parent.ID, ref.ID, ErrNotFound)
		}
		return v, fmt.Errorf("failed to get %s: %w", ref.ID, err)
	}
	return decodeDoc[T](ctx, doc)
}

// wrapNotFound translates Firestore's NotFound status into ErrNotFound.
func wrapNotFound(err error, format string, args ...any) error {
	if status.Code(err) == codes.NotFound {
		err = ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func countQuery(ctx context.Context, q firestore.Query) (int, error) {
	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	var n int
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("error counting documents: %w", err)
		}
		n++
	}
}

func paginate(q firestore.Query, limit, offset int) firestore.Query {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func whereEq(q firestore.Query, field, value string) firestore.Query {
	if value == "" {
		return q
	}
	return q.Where(field, "==", value)
}

// deleteCollection removes every document of coll with a BulkWriter.
func (f *FirestoreProvider) deleteCollection(ctx context.Context, coll *firestore.CollectionRef) error {
	iter := coll.Select().Documents(ctx)
	defer iter.Stop()

	bw := f.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("error iterating %s: %w", coll.Path, err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue delete of %s: %w", doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return jobResults(jobs)
}

func jobResults(jobs []*firestore.BulkWriterJob) error {
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return err
		}
	}
	return nil
}

// setAll writes docs with a BulkWriter and waits for every result.
func (f *FirestoreProvider) setAll(ctx context.Context, docs map[*firestore.DocumentRef]map[string]interface{}) error {
	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for ref, data := range docs {
		job, err := bw.Set(ref, data)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue write of %s: %w", ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return jobResults(jobs)
}

func plantFields(p types.Plant) map[string]interface{} {
	return map[string]interface{}{
		"user_id":    p.UserID,
		"type":       string(p.Type),
		"status":     string(p.Status),
		"created_at": p.CreatedAt,
	}
}

// ListPlants retrieves the user's plants from the "plants" collection.
func (f *FirestoreProvider) ListPlants(ctx context.Context, userID string, filter PlantFilter) ([]types.Plant, int, error) {
	q := f.client.Collection("plants").Where("user_id", "==", userID)
	q = whereEq(q, "type", string(filter.Type))
	q = whereEq(q, "status", string(filter.Status))

	total, err := countQuery(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	plants, err := collect[types.Plant](ctx, paginate(q.OrderBy("created_at", firestore.Desc), filter.Limit, filter.Offset).Documents(ctx))
	if err != nil {
		return nil, 0, err
	}
	return plants, total, nil
}

func (f *FirestoreProvider) GetPlant(ctx context.Context, plantID string) (types.Plant, error) {
	return getDoc[types.Plant](ctx, f.client.Collection("plants").Doc(plantID))
}

func (f *FirestoreProvider) CreatePlant(ctx context.Context, plant types.Plant) error {
	data, err := withJSON(plant, plantFields(plant))
	if err != nil {
		return fmt.Errorf("failed to marshal plant: %w", err)
	}
	if _, err := f.client.Collection("plants").Doc(plant.ID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to create plant: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) UpdatePlant(ctx context.Context, plant types.Plant) error {
	data, err := withJSON(plant, plantFields(plant))
	if err != nil {
		return fmt.Errorf("failed to marshal plant: %w", err)
	}
	if _, err := f.client.Collection("plants").Doc(plant.ID).Update(ctx, updatesFrom(data)); err != nil {
		return wrapNotFound(err, "failed to update plant %s", plant.ID)
	}
	return nil
}

// DeletePlant removes the plant document and its "forecast" subcollection.
func (f *FirestoreProvider) DeletePlant(ctx context.Context, plantID string) error {
	ref := f.client.Collection("plants").Doc(plantID)
	if err := f.deleteCollection(ctx, ref.Collection("forecast")); err != nil {
		return fmt.Errorf("failed to delete plant forecast: %w", err)
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return wrapNotFound(err, "failed to delete plant %s", plantID)
	}
	return nil
}

// ReplacePlantForecast clears the plant's "forecast" subcollection and writes
// points keyed by their timestamp.
func (f *FirestoreProvider) ReplacePlantForecast(ctx context.Context, plantID string, points []types.PlantForecastPoint) error {
	coll := f.client.Collection("plants").Doc(plantID).Collection("forecast")
	if err := f.deleteCollection(ctx, coll); err != nil {
		return fmt.Errorf("failed to clear plant forecast: %w", err)
	}
	docs := make(map[*firestore.DocumentRef]map[string]interface{}, len(points))
	for _, p := range points {
		p.PlantID = plantID
		data, err := withJSON(p, map[string]interface{}{"timestamp": p.Timestamp})
		if err != nil {
			return fmt.Errorf("failed to marshal forecast point: %w", err)
		}
		docs[coll.Doc(tsDocID(p.Timestamp))] = data
	}
	if err := f.setAll(ctx, docs); err != nil {
		return fmt.Errorf("failed to write plant forecast: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) GetPlantForecast(ctx context.Context, plantID string, limit int) ([]types.PlantForecastPoint, error) {
	coll := f.client.Collection("plants").Doc(plantID).Collection("forecast")
	return collect[types.PlantForecastPoint](ctx, paginate(coll.OrderBy(firestore.DocumentID, firestore.Asc), limit, 0).Documents(ctx))
}

func suggestionFields(s types.Suggestion) map[string]interface{} {
	return map[string]interface{}{
		"user_id":    s.UserID,
		"type":       string(s.Type),
		"priority":   string(s.Priority),
		"status":     string(s.Status),
		"created_at": s.CreatedAt,
	}
}

func (f *FirestoreProvider) ListSuggestions(ctx context.Context, userID string, filter SuggestionFilter) ([]types.Suggestion, int, error) {
	q := f.client.Collection("suggestions").Where("user_id", "==", userID)
	q = whereEq(q, "type", string(filter.Type))
	q = whereEq(q, "priority", string(filter.Priority))
	q = whereEq(q, "status", string(filter.Status))

	total, err := countQuery(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect[types.Suggestion](ctx, paginate(q.OrderBy("created_at", firestore.Desc), filter.Limit, filter.Offset).Documents(ctx))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (f *FirestoreProvider) GetSuggestion(ctx context.Context, suggestionID string) (types.Suggestion, error) {
	return getDoc[types.Suggestion](ctx, f.client.Collection("suggestions").Doc(suggestionID))
}

func (f *FirestoreProvider) InsertSuggestions(ctx context.Context, suggestions []types.Suggestion) error {
	coll := f.client.Collection("suggestions")
	docs := make(map[*firestore.DocumentRef]map[string]interface{}, len(suggestions))
	for _, s := range suggestions {
		data, err := withJSON(s, suggestionFields(s))
		if err != nil {
			return fmt.Errorf("failed to marshal suggestion: %w", err)
		}
		docs[coll.Doc(s.ID)] = data
	}
	if err := f.setAll(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert suggestions: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) UpdateSuggestion(ctx context.Context, suggestion types.Suggestion) error {
	data, err := withJSON(suggestion, suggestionFields(suggestion))
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	if _, err := f.client.Collection("suggestions").Doc(suggestion.ID).Update(ctx, updatesFrom(data)); err != nil {
		return wrapNotFound(err, "failed to update suggestion %s", suggestion.ID)
	}
	return nil
}

func (f *FirestoreProvider) DeleteSuggestion(ctx context.Context, suggestionID string) error {
	if _, err := f.client.Collection("suggestions").Doc(suggestionID).Delete(ctx, firestore.Exists); err != nil {
		return wrapNotFound(err, "failed to delete suggestion %s", suggestionID)
	}
	return nil
}

func uploadFields(u types.Upload) map[string]interface{} {
	var plantID string
	if u.PlantID != nil {
		plantID = *u.PlantID
	}
	return map[string]interface{}{
		"user_id":     u.UserID,
		"plant_id":    plantID,
		"status":      string(u.Status),
		"uploaded_at": u.UploadedAt,
	}
}

func (f *FirestoreProvider) ListUploads(ctx context.Context, userID string, filter UploadFilter) ([]types.Upload, int, error) {
	q := f.client.Collection("uploads").Where("user_id", "==", userID)
	q = whereEq(q, "status", string(filter.Status))
	q = whereEq(q, "plant_id", filter.PlantID)

	total, err := countQuery(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect[types.Upload](ctx, paginate(q.OrderBy("uploaded_at", firestore.Desc), filter.Limit, filter.Offset).Documents(ctx))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (f *FirestoreProvider) GetUpload(ctx context.Context, uploadID string) (types.Upload, error) {
	return getDoc[types.Upload](ctx, f.client.Collection("uploads").Doc(uploadID))
}

func (f *FirestoreProvider) CreateUpload(ctx context.Context, upload types.Upload) error {
	data, err := withJSON(upload, uploadFields(upload))
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}
	if _, err := f.client.Collection("uploads").Doc(upload.ID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) UpdateUpload(ctx context.Context, upload types.Upload) error {
	data, err := withJSON(upload, uploadFields(upload))
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}
	if _, err := f.client.Collection("uploads").Doc(upload.ID).Update(ctx, updatesFrom(data)); err != nil {
		return wrapNotFound(err, "failed to update upload %s", upload.ID)
	}
	return nil
}

// DeleteUpload removes the upload document and its "series" subcollection.
func (f *FirestoreProvider) DeleteUpload(ctx context.Context, uploadID string) error {
	ref := f.client.Collection("uploads").Doc(uploadID)
	if err := f.deleteCollection(ctx, ref.Collection("series")); err != nil {
		return fmt.Errorf("failed to delete series: %w", err)
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return wrapNotFound(err, "failed to delete upload %s", uploadID)
	}
	return nil
}

// InsertSeries writes points to the upload's "series" subcollection. The
// document ID is the timestamp, so a repeated timestamp overwrites.
func (f *FirestoreProvider) InsertSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	coll := f.client.Collection("uploads").Doc(uploadID).Collection("series")
	docs := make(map[*firestore.DocumentRef]map[string]interface{}, len(points))
	for _, p := range points {
		p.UploadID = uploadID
		data, err := withJSON(p, map[string]interface{}{"timestamp": p.Timestamp})
		if err != nil {
			return fmt.Errorf("failed to marshal series point: %w", err)
		}
		docs[coll.Doc(tsDocID(p.Timestamp))] = data
	}
	if err := f.setAll(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert series: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) InsertForecastEvent(ctx context.Context, event types.ForecastEvent) error {
	data, err := withJSON(event, map[string]interface{}{
		"region_code": event.RegionCode,
		"created_at":  event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast event: %w", err)
	}
	if _, err := f.client.Collection("forecast_events").Doc(event.ForecastID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to insert forecast event: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) GetForecastEvent(ctx context.Context, forecastID string) (types.ForecastEvent, error) {
	return getDoc[types.ForecastEvent](ctx, f.client.Collection("forecast_events").Doc(forecastID))
}

func (f *FirestoreProvider) ListForecastEvents(ctx context.Context, regionCode string, limit int) ([]types.ForecastEvent, error) {
	q := whereEq(f.client.Collection("forecast_events").Query, "region_code", regionCode)
	return collect[types.ForecastEvent](ctx, paginate(q.OrderBy("created_at", firestore.Desc), limit, 0).Documents(ctx))
}

func (f *FirestoreProvider) InsertForecastError(ctx context.Context, fe types.ForecastError) error {
	data, err := withJSON(fe, map[string]interface{}{
		"forecast_id":        fe.ForecastID,
		"region_code":        fe.RegionCode,
		"severity":           string(fe.Severity),
		"analysis_triggered": fe.AnalysisTriggered,
		"observed_at":        fe.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast error: %w", err)
	}
	if _, err := f.client.Collection("forecast_errors").Doc(fe.ID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to insert forecast error: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) ListForecastErrors(ctx context.Context, filter ErrorFilter) ([]types.ForecastError, error) {
	q := f.client.Collection("forecast_errors").Query
	q = whereEq(q, "region_code", filter.RegionCode)
	q = whereEq(q, "severity", string(filter.Severity))
	if filter.PendingOnly {
		q = q.Where("analysis_triggered", "==", true)
	}
	return collect[types.ForecastError](ctx, paginate(q.OrderBy("observed_at", firestore.Desc), filter.Limit, 0).Documents(ctx))
}

var _ Database = (*FirestoreProvider)(nil)
