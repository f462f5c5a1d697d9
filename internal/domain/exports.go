package domain

import (
	interfaces "konnect/internal/domain/interfaces"
	types "konnect/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserType             = types.UserType
	Identity             = types.Identity
	GroupID              = types.GroupID
	KeyPair              = types.KeyPair
	SessionKey           = types.SessionKey
	ServerPublicKey      = types.ServerPublicKey
	Recipient            = types.Recipient
	UserKeys             = types.UserKeys
	MessageEnvelope      = types.MessageEnvelope
	DecryptedMessage     = types.DecryptedMessage
	StoredKeyRecord      = types.StoredKeyRecord
	KeyBackup            = types.KeyBackup
	EncryptedRequest     = types.EncryptedRequest
	EncryptedResponse    = types.EncryptedResponse
	KeyExchangeRequest   = types.KeyExchangeRequest
	KeyExchangeResponse  = types.KeyExchangeResponse
	RecipientKeyRequest  = types.RecipientKeyRequest
	RecipientKeyResponse = types.RecipientKeyResponse
	GroupKeysRequest     = types.GroupKeysRequest
	GroupMemberKey       = types.GroupMemberKey
	GroupKeysResponse    = types.GroupKeysResponse
	RegisterKeyRequest   = types.RegisterKeyRequest
	AckRequest           = types.AckRequest
	GroupMembersRequest  = types.GroupMembersRequest
	ErrorResponse        = types.ErrorResponse
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyServer        = interfaces.KeyServer
	MessageTransport = interfaces.MessageTransport
	APIClient        = interfaces.APIClient
	KVStore          = interfaces.KVStore
	MessageCache     = interfaces.MessageCache
	SessionState     = interfaces.SessionState
	KeyExchange      = interfaces.KeyExchange
	KeyVault         = interfaces.KeyVault
	BackupStore      = interfaces.BackupStore
	MessageService   = interfaces.MessageService
	RequestService   = interfaces.RequestService
	IdentityService  = interfaces.IdentityService
	Session          = interfaces.Session
)

// Re-exported constants.
const (
	UserStudent = types.UserStudent
	UserClub    = types.UserClub
	UserAdmin   = types.UserAdmin

	RoutingAADSender   = types.RoutingAADSender
	RoutingAADReceiver = types.RoutingAADReceiver
	RoutingAADGroup    = types.RoutingAADGroup

	StoredKeyPrefix        = types.StoredKeyPrefix
	StoredKeyRecordVersion = types.StoredKeyRecordVersion
	KeyBackupVersion       = types.KeyBackupVersion

	StateUninitialized = interfaces.StateUninitialized
	StateKeyRequested  = interfaces.StateKeyRequested
	StateEstablished   = interfaces.StateEstablished
	StateExpired       = interfaces.StateExpired
)

// Re-exported transport errors.
var (
	ErrNotFound     = types.ErrNotFound
	ErrUnknownKeyID = types.ErrUnknownKeyID
	ErrUnauthorized = types.ErrUnauthorized
)

// ParseIdentity parses the "type:id" form of an identity.
var ParseIdentity = types.ParseIdentity
