// Package http exposes the scheduling engine to the CRUD layer over JSON.
//
// Every route requires the `X-Owner-ID` header naming the teacher the request
// acts for; requests without it are rejected with 401. The router exposes:
//   - GET /events?from=&to=, POST /events: list (RFC3339 window) and create
//     calendar events. Creation also writes the paired journal lesson.
//   - GET /events/{id}, PUT /events/{id}, DELETE /events/{id}: read, update
//     (moving the paired lesson) and delete (cascading to lesson and attendance).
//   - POST /events/recurring: expand a weekly rule into paired events.
//   - POST /imports: import already-decoded rows with a column mapping.
//   - POST /imports/workbook: multipart upload of an xlsx or csv timetable.
//   - GET /conflicts: overlapping events of the owner.
//   - GET /free-slots?duration=90&days=5&preferred_days=Monday,Friday: free windows.
//   - POST /sync, GET /sync/status: create missing journal lessons, report drift.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
