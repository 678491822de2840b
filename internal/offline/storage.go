package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StoredResponse — сохранённая копия HTTP-ответа.
type StoredResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Clone возвращает глубокую копию.
func (r *StoredResponse) Clone() *StoredResponse {
	if r == nil {
		return nil
	}
	return &StoredResponse{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       bytes.Clone(r.Body),
		StoredAt:   r.StoredAt,
	}
}

// HTTPResponse собирает ответ для клиента из сохранённой копии.
func (r *StoredResponse) HTTPResponse(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(SourceHeader, SourceCache)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// Cache — одна именованная версия кэша: ключ запроса → ответ.
type Cache interface {
	Match(ctx context.Context, key string) (*StoredResponse, bool, error)
	Put(ctx context.Context, key string, resp *StoredResponse) error
	// Delete удаляет одну запись; отсутствие записи ошибкой не считается.
	Delete(ctx context.Context, key string) error
}

// Storage — набор версий кэша (аналог CacheStorage в браузере).
type Storage interface {
	// Open открывает версию name, создавая её при необходимости.
	Open(ctx context.Context, name string) (Cache, error)
	// Lookup возвращает существующую версию и ничего не создаёт.
	Lookup(ctx context.Context, name string) (Cache, bool, error)
	// Keys перечисляет существующие версии.
	Keys(ctx context.Context) ([]string, error)
	// Delete удаляет версию целиком и сообщает, существовала ли она.
	Delete(ctx context.Context, name string) (bool, error)
}
