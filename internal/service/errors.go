package service

import "errors"

var (
	// ErrChatForbidden indicates the caller is not allowed to act on the room or message.
	ErrChatForbidden = errors.New("not authorised for this chat resource")

	// ErrInvalidRoomID indicates a room identifier that is neither a UUID nor a known alias form.
	ErrInvalidRoomID = errors.New("invalid room identifier")

	// ErrNotParticipant indicates the user is not an active member of the room.
	ErrNotParticipant = errors.New("user is not a participant of this room")

	// ErrMessageDeleted indicates an attempt to edit a tombstoned message.
	ErrMessageDeleted = errors.New("message has been deleted")

	// ErrMissingLinkage indicates a creation request without its required external reference.
	ErrMissingLinkage = errors.New("room creation request missing required linkage")

	// ErrAttachmentTooLarge indicates an upload exceeding the configured size limit.
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
)
