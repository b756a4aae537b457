package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-maintained mus-go serializers for storage values. The field order in
// each Marshal is the on-disk format; only ever append new fields at the end.

var (
	// DocumentMUS serializes Document values.
	DocumentMUS = documentMUS{}
	// PersonaMUS serializes Persona values.
	PersonaMUS = personaMUS{}
	// UserMUS serializes User values.
	UserMUS = userMUS{}
	// FolderMUS serializes Folder values.
	FolderMUS = folderMUS{}
)

// Timestamps are stored as Unix microseconds.

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.Id, bs)
	n += varint.Int.Marshal(int(d.Scope.Source), bs[n:])
	n += ord.String.Marshal(d.Scope.OwnerId, bs[n:])
	n += ord.String.Marshal(d.Scope.TenantId, bs[n:])
	n += ord.String.Marshal(d.FolderId, bs[n:])
	n += ord.String.Marshal(d.FileName, bs[n:])
	n += ord.String.Marshal(d.FileExt, bs[n:])
	n += varint.Int64.Marshal(d.FileSizeBytes, bs[n:])
	n += ord.String.Marshal(d.MimeType, bs[n:])
	n += ord.String.Marshal(d.StorageBucket, bs[n:])
	n += ord.String.Marshal(d.StorageKey, bs[n:])
	n += ord.String.Marshal(d.ContentHash, bs[n:])
	n += ord.String.Marshal(string(d.Status), bs[n:])
	n += ord.String.Marshal(string(d.ErrorCode), bs[n:])
	n += ord.String.Marshal(d.ErrorMessage, bs[n:])
	n += varint.Int.Marshal(d.ChunkCount, bs[n:])
	n += ord.String.Marshal(d.ExtractedText, bs[n:])
	n += marshalTime(d.UploadedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	d.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var source int
	source, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Scope.Source = SourceType(source)
	d.Scope.OwnerId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Scope.TenantId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.FolderId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.FileName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.FileExt, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.FileSizeBytes, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.MimeType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.StorageBucket, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.StorageKey, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ContentHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status string
	status, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Status = Status(status)
	var code string
	code, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ErrorCode = ErrorCode(code)
	d.ErrorMessage, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ExtractedText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.UploadedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (documentMUS) Size(d Document) (size int) {
	size = ord.String.Size(d.Id)
	size += varint.Int.Size(int(d.Scope.Source))
	size += ord.String.Size(d.Scope.OwnerId)
	size += ord.String.Size(d.Scope.TenantId)
	size += ord.String.Size(d.FolderId)
	size += ord.String.Size(d.FileName)
	size += ord.String.Size(d.FileExt)
	size += varint.Int64.Size(d.FileSizeBytes)
	size += ord.String.Size(d.MimeType)
	size += ord.String.Size(d.StorageBucket)
	size += ord.String.Size(d.StorageKey)
	size += ord.String.Size(d.ContentHash)
	size += ord.String.Size(string(d.Status))
	size += ord.String.Size(string(d.ErrorCode))
	size += ord.String.Size(d.ErrorMessage)
	size += varint.Int.Size(d.ChunkCount)
	size += ord.String.Size(d.ExtractedText)
	size += sizeTime(d.UploadedAt)
	size += sizeTime(d.UpdatedAt)
	return size
}

type personaMUS struct{}

func (personaMUS) Marshal(p Persona, bs []byte) (n int) {
	n = ord.String.Marshal(p.Id, bs)
	n += ord.String.Marshal(p.OwnerId, bs[n:])
	n += ord.String.Marshal(p.Name, bs[n:])
	n += ord.String.Marshal(p.Prompt, bs[n:])
	n += ord.Bool.Marshal(p.Active, bs[n:])
	n += marshalTime(p.CreatedAt, bs[n:])
	n += marshalTime(p.UpdatedAt, bs[n:])
	return n
}

func (personaMUS) Unmarshal(bs []byte) (p Persona, n int, err error) {
	var n1 int
	p.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	p.OwnerId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Prompt, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Active, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (personaMUS) Size(p Persona) (size int) {
	size = ord.String.Size(p.Id)
	size += ord.String.Size(p.OwnerId)
	size += ord.String.Size(p.Name)
	size += ord.String.Size(p.Prompt)
	size += ord.Bool.Size(p.Active)
	size += sizeTime(p.CreatedAt)
	size += sizeTime(p.UpdatedAt)
	return size
}

type userMUS struct{}

func (userMUS) Marshal(u User, bs []byte) (n int) {
	n = ord.String.Marshal(u.Id, bs)
	n += ord.String.Marshal(u.ActivePersonaId, bs[n:])
	return n
}

func (userMUS) Unmarshal(bs []byte) (u User, n int, err error) {
	var n1 int
	u.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	u.ActivePersonaId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (userMUS) Size(u User) (size int) {
	size = ord.String.Size(u.Id)
	size += ord.String.Size(u.ActivePersonaId)
	return size
}

type folderMUS struct{}

func (folderMUS) Marshal(f Folder, bs []byte) (n int) {
	n = ord.String.Marshal(f.Id, bs)
	n += ord.String.Marshal(f.OwnerId, bs[n:])
	n += ord.String.Marshal(f.Name, bs[n:])
	n += marshalTime(f.CreatedAt, bs[n:])
	return n
}

func (folderMUS) Unmarshal(bs []byte) (f Folder, n int, err error) {
	var n1 int
	f.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	f.OwnerId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (folderMUS) Size(f Folder) (size int) {
	size = ord.String.Size(f.Id)
	size += ord.String.Size(f.OwnerId)
	size += ord.String.Size(f.Name)
	size += sizeTime(f.CreatedAt)
	return size
}
