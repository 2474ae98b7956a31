package couchstore

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const designDoc = `{
   "_id": "_design/forum",
   "language": "javascript",
   "views": {
       "stories": {
           "map": "function(doc) {\n  if (doc.type === \"story\" && doc.active) {\n    emit([doc.created, doc.id], null);\n  }\n}\n"
       },
       "comments": {
           "map": "function(doc) {\n  if (doc.type === \"comment\" && !doc.deleted) {\n    emit([doc.created, doc.id], null);\n  }\n}\n"
       },
       "by_message_id": {
           "map": "function(doc) {\n  var visible = (doc.type === \"story\" && doc.active) ||\n    (doc.type === \"comment\" && !doc.deleted);\n  if (visible && doc.message_id) {\n    emit(doc.message_id, null);\n  }\n}\n"
       },
       "modified": {
           "map": "function(doc) {\n  if (doc.type === \"story\" || doc.type === \"comment\") {\n    var t = doc.created;\n    if (doc.last_modified && doc.last_modified > t) {\n      t = doc.last_modified;\n    }\n    emit(t, null);\n  }\n}\n"
       }
   }
}`

// A conflict means the design document is already installed.
func viewUpdateOK(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated || code == http.StatusConflict
}

// EnsureViews installs the design document the store queries.
func (s *Store) EnsureViews(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.dburl, strings.NewReader(designDoc))
	if err != nil {
		return errors.Wrap(err, "building view request")
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "updating views")
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if !viewUpdateOK(res.StatusCode) {
		return errors.Errorf("updating views: %v", res.Status)
	}
	return nil
}
