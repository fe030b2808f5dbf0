package activity

import (
	"strings"
	"time"
)

// ObjectTypeCollection is the object type carried by every docstore event.
const ObjectTypeCollection = "docstore.collection"

const verbPrefix = "docstore."

// Event verbs emitted by the docstore adapter.
const (
	VerbRegistered     = "docstore.registered"
	VerbUnregistered   = "docstore.unregistered"
	VerbLoaded         = "docstore.loaded"
	VerbSaved          = "docstore.saved"
	VerbAdvisory       = "docstore.advisory"
	VerbBackupCreated  = "docstore.backup.created"
	VerbBackupsPruned  = "docstore.backup.pruned"
	VerbBackupRestored = "docstore.backup.restored"
)

// CollectionEventInput describes the common fields for collection events.
type CollectionEventInput struct {
	Collection string
	Channel    string
	Metadata   map[string]any
	Records    int
	Bytes      int
	Encrypted  bool
	FellBack   bool
	Backup     string
	Code       string
	Message    string
	Err        error
	OccurredAt time.Time
}

// BuildRegisteredEvent reports a callback registration.
func BuildRegisteredEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbRegistered, input)
}

// BuildUnregisteredEvent reports a callback removal.
func BuildUnregisteredEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbUnregistered, input)
}

// BuildLoadedEvent reports a successful load.
func BuildLoadedEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbLoaded, input)
}

// BuildSavedEvent reports a successful save, including whether the change set
// was discarded in favour of the caller's final snapshot.
func BuildSavedEvent(input CollectionEventInput) Event {
	event := buildCollectionEvent(VerbSaved, input)
	event.Metadata["fell_back"] = input.FellBack
	return event
}

// BuildAdvisoryEvent reports a non-fatal security or durability advisory.
func BuildAdvisoryEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbAdvisory, input)
}

// BuildBackupCreatedEvent reports a new backup artifact.
func BuildBackupCreatedEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbBackupCreated, input)
}

// BuildBackupsPrunedEvent reports removal of expired backups.
func BuildBackupsPrunedEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbBackupsPruned, input)
}

// BuildBackupRestoredEvent reports a backup promoted to canonical.
func BuildBackupRestoredEvent(input CollectionEventInput) Event {
	return buildCollectionEvent(VerbBackupRestored, input)
}

func buildCollectionEvent(verb string, input CollectionEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if input.Records > 0 || verb == VerbLoaded || verb == VerbSaved {
		metadata["records"] = input.Records
	}
	if input.Bytes > 0 {
		metadata["bytes"] = input.Bytes
	}
	if input.Encrypted {
		metadata["encrypted"] = true
	}
	if input.Backup != "" {
		metadata["backup"] = input.Backup
	}
	if code := strings.TrimSpace(input.Code); code != "" {
		metadata["code"] = code
	}
	if input.Message != "" {
		metadata["message"] = input.Message
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	return Event{
		Verb:       verb,
		ObjectType: ObjectTypeCollection,
		ObjectID:   strings.TrimSpace(input.Collection),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
