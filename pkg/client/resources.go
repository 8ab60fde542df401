package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Upload is a file attached to a multipart create or update.
type Upload struct {
	Filename string
	Content  []byte
}

// Resource binds one moderated record type to its endpoints and cache store.
type Resource[T Record] struct {
	client    *Client
	store     *Store[T]
	path      string
	fileField string
	label     string
}

// Publications returns the publication resource bound to its store.
func Publications(c *Client) *Resource[Publication] {
	return &Resource[Publication]{client: c, store: NewStore[Publication](), path: "/publications", fileField: "file", label: "publication"}
}

// MetadataRecords returns the dataset metadata resource bound to its store.
func MetadataRecords(c *Client) *Resource[Metadata] {
	return &Resource[Metadata]{client: c, store: NewStore[Metadata](), path: "/metadata", fileField: "file", label: "metadata record"}
}

// Photos returns the photo resource bound to its store.
func Photos(c *Client) *Resource[Photo] {
	return &Resource[Photo]{client: c, store: NewStore[Photo](), path: "/photos", fileField: "image", label: "photo"}
}

// Projects returns the project resource bound to its store. Projects carry
// no file attachment.
func Projects(c *Client) *Resource[Project] {
	return &Resource[Project]{client: c, store: NewStore[Project](), path: "/projects", label: "project"}
}

// Store exposes the resource's cache store.
func (r *Resource[T]) Store() *Store[T] { return r.store }

// List fetches the public approved view without touching the cache.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, *Pagination, error) {
	return r.fetch(ctx, r.client.public, r.path+"/", query)
}

// ListMine fetches the caller's own records without touching the cache.
func (r *Resource[T]) ListMine(ctx context.Context) ([]T, *Pagination, error) {
	return r.fetch(ctx, r.client.private, r.path+"/me/", nil)
}

// ListPending fetches the moderation queue without touching the cache.
func (r *Resource[T]) ListPending(ctx context.Context) ([]T, *Pagination, error) {
	return r.fetch(ctx, r.client.private, r.path+"/unpublished/", nil)
}

// Refresh loads the role-scoped view into the cache: admins see the pending
// queue, members their own records. The cache is left unchanged on failure.
func (r *Resource[T]) Refresh(ctx context.Context) error {
	r.store.SetLoading(true)

	var items []T
	var err error
	if state := r.client.session.State(); state.User != nil && state.User.IsAdmin() {
		items, _, err = r.ListPending(ctx)
	} else {
		items, _, err = r.ListMine(ctx)
	}

	r.store.SetItemsLoading(items, err)
	if err != nil {
		r.client.notifier.Error(fmt.Sprintf("Failed to load %ss", r.label))
		return err
	}
	return nil
}

// Create submits a new record. The cache is updated only after the server
// accepts the submission.
func (r *Resource[T]) Create(ctx context.Context, fields map[string]string, file *Upload) (*T, error) {
	if r.fileField != "" && file == nil {
		return nil, &APIError{Code: "FILE_REQUIRED", Message: "a file attachment is required", Status: http.StatusBadRequest}
	}

	var created T
	var err error
	if r.fileField != "" {
		err = r.client.doMultipart(ctx, http.MethodPost, r.path+"/", fields, r.fileField, file, &created)
	} else {
		_, err = r.client.doJSON(ctx, r.client.private, http.MethodPost, r.path+"/", fields, &created)
	}
	if err != nil {
		r.client.notifier.Error(fmt.Sprintf("Failed to submit %s", r.label))
		return nil, err
	}

	r.store.Add(created)
	r.client.notifier.Success(fmt.Sprintf("Submitted %s for review", r.label))
	return &created, nil
}

// Update edits a pending record. The cache is updated only after the server
// accepts the change.
func (r *Resource[T]) Update(ctx context.Context, id string, fields map[string]string, file *Upload) (*T, error) {
	var updated T
	var err error
	if r.fileField != "" {
		err = r.client.doMultipart(ctx, http.MethodPatch, r.path+"/"+id+"/", fields, r.fileField, file, &updated)
	} else {
		_, err = r.client.doJSON(ctx, r.client.private, http.MethodPatch, r.path+"/"+id+"/", fields, &updated)
	}
	if err != nil {
		r.client.notifier.Error(fmt.Sprintf("Failed to update %s", r.label))
		return nil, err
	}

	r.store.Update(updated)
	r.client.notifier.Success(fmt.Sprintf("Updated %s", r.label))
	return &updated, nil
}

// Delete removes a record, dropping it from the cache after the server
// confirms.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.client.doJSON(ctx, r.client.private, http.MethodDelete, r.path+"/"+id+"/", nil, nil); err != nil {
		r.client.notifier.Error(fmt.Sprintf("Failed to delete %s", r.label))
		return err
	}
	r.store.Remove(id)
	r.client.notifier.Success(fmt.Sprintf("Deleted %s", r.label))
	return nil
}

// Approve records an admin approval and drops the record from the pending
// view.
func (r *Resource[T]) Approve(ctx context.Context, id string) error {
	return r.moderate(ctx, id, StatusApproved)
}

// Reject records an admin rejection and drops the record from the pending
// view.
func (r *Resource[T]) Reject(ctx context.Context, id string) error {
	return r.moderate(ctx, id, StatusRejected)
}

func (r *Resource[T]) moderate(ctx context.Context, id, status string) error {
	path := r.path + "/unpublished/" + id + "/"
	if _, err := r.client.doJSON(ctx, r.client.private, http.MethodPatch, path, map[string]string{"status": status}, nil); err != nil {
		r.client.notifier.Error(fmt.Sprintf("Failed to moderate %s", r.label))
		return err
	}

	if status == StatusApproved {
		r.store.Approve(id)
		r.client.notifier.Success(fmt.Sprintf("Approved %s", r.label))
	} else {
		r.store.Reject(id)
		r.client.notifier.Success(fmt.Sprintf("Rejected %s", r.label))
	}
	return nil
}

func (r *Resource[T]) fetch(ctx context.Context, httpc *http.Client, path string, query url.Values) ([]T, *Pagination, error) {
	target := path
	if len(query) > 0 {
		target = path + "?" + query.Encode()
	}
	var items []T
	pagination, err := r.client.doJSON(ctx, httpc, http.MethodGet, target, nil, &items)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination, nil
}

// doMultipart issues a multipart form request through the private client.
// The body is buffered so the refresh transport can replay it.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, fileField string, file *Upload, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(fileField, file.Filename)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return fmt.Errorf("write form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}

	body, getBody := rewindable(buf.Bytes())
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Body = body
	req.GetBody = getBody
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	_, err = c.execute(c.private, req, out)
	return err
}
