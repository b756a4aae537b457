// Copyright 2025 Carrel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/carrelhq/carrel/core"
)

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalPersona serializes a Persona to bytes.
func MarshalPersona(persona *core.Persona) []byte {
	buf := make([]byte, core.PersonaMUS.Size(*persona))
	core.PersonaMUS.Marshal(*persona, buf)
	return buf
}

// UnmarshalPersona deserializes a Persona from bytes.
func UnmarshalPersona(data []byte) (*core.Persona, error) {
	persona, _, err := core.PersonaMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

// MarshalUser serializes a User to bytes.
func MarshalUser(user *core.User) []byte {
	buf := make([]byte, core.UserMUS.Size(*user))
	core.UserMUS.Marshal(*user, buf)
	return buf
}

// UnmarshalUser deserializes a User from bytes.
func UnmarshalUser(data []byte) (*core.User, error) {
	user, _, err := core.UserMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarshalFolder serializes a Folder to bytes.
func MarshalFolder(folder *core.Folder) []byte {
	buf := make([]byte, core.FolderMUS.Size(*folder))
	core.FolderMUS.Marshal(*folder, buf)
	return buf
}

// UnmarshalFolder deserializes a Folder from bytes.
func UnmarshalFolder(data []byte) (*core.Folder, error) {
	folder, _, err := core.FolderMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
