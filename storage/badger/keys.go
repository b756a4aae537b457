package badger

import "fmt"

// Key prefixes for different data types
const (
	documentPrefix     = "doc"
	documentHashPrefix = "dochash"
	personaPrefix      = "persona"
	personaOwnerPrefix = "personaowner"
	userPrefix         = "user"
	folderPrefix       = "folder"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// makeDocumentHashKey generates a key for the content-hash index.
// Format: prefix:namespace:hash:documentID
// Namespace segments contain only [A-Za-z0-9_-] and hashes are hex, so the
// colon separators are unambiguous.
func makeDocumentHashKey(namespace, contentHash, documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", documentHashPrefix, namespace, contentHash, documentID))
}

// makeDocumentHashPrefix generates the iteration prefix for all index
// entries sharing a (namespace, hash) pair.
func makeDocumentHashPrefix(namespace, contentHash string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", documentHashPrefix, namespace, contentHash))
}

// makePersonaKey generates a key for a persona by ID.
func makePersonaKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", personaPrefix, id))
}

// makePersonaOwnerKey generates a key for the persona ownership index.
// Format: prefix:ownerID:personaID
func makePersonaOwnerKey(ownerID, personaID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", personaOwnerPrefix, ownerID, personaID))
}

// makePersonaOwnerPrefix generates the iteration prefix for one owner's
// personas.
func makePersonaOwnerPrefix(ownerID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", personaOwnerPrefix, ownerID))
}

// makeUserKey generates a key for a user record by ID.
func makeUserKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", userPrefix, id))
}

// makeFolderKey generates a key for a folder by ID.
func makeFolderKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", folderPrefix, id))
}
