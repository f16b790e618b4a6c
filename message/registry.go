package message

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/OneOfOne/xxhash"
	coreErrors "github.com/amp-labs/amp-gamecore/errors"
)

// Registry maps payload types to message ids in two independent tables: one
// for requests and one for responses. A type may live in only one of them.
// Types are keyed exactly as registered, so register the pointer type if
// payloads travel as pointers.
type Registry struct {
	mu        sync.RWMutex
	requests  table
	responses table
}

type table struct {
	ids   map[reflect.Type]ID
	types map[ID]reflect.Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:  table{ids: make(map[reflect.Type]ID), types: make(map[ID]reflect.Type)},
		responses: table{ids: make(map[reflect.Type]ID), types: make(map[ID]reflect.Type)},
	}
}

// RegisterRequest maps typ to id in the request table.
func (r *Registry) RegisterRequest(typ reflect.Type, id ID) error {
	return r.register(typ, id, &r.requests, &r.responses, "request")
}

// RegisterResponse maps typ to id in the response table.
func (r *Registry) RegisterResponse(typ reflect.Type, id ID) error {
	return r.register(typ, id, &r.responses, &r.requests, "response")
}

// RegisterHashed registers typ as a request whose id is the XXH32 checksum of
// its qualified type name. Both ends derive the same id without a shared table,
// which suits server-to-server data messages.
func (r *Registry) RegisterHashed(typ reflect.Type) (ID, error) {
	if typ == nil {
		return 0, fmt.Errorf("%w: nil type", coreErrors.ErrMessageTypeNotRegistered)
	}

	id := HashedID(typ)

	if err := r.RegisterRequest(typ, id); err != nil {
		return 0, err
	}

	return id, nil
}

// HashedID is the id RegisterHashed assigns to typ.
func HashedID(typ reflect.Type) ID {
	return ID(int32(xxhash.Checksum32([]byte(TypeName(typ))))) //nolint:gosec
}

// RegisterRequestOf is RegisterRequest for the type argument T.
func RegisterRequestOf[T any](r *Registry, id ID) error {
	return r.RegisterRequest(reflect.TypeFor[T](), id)
}

// RegisterResponseOf is RegisterResponse for the type argument T.
func RegisterResponseOf[T any](r *Registry, id ID) error {
	return r.RegisterResponse(reflect.TypeFor[T](), id)
}

func (r *Registry) register(typ reflect.Type, id ID, into, other *table, direction string) error {
	if typ == nil {
		return fmt.Errorf("%w: nil %s type", coreErrors.ErrMessageTypeNotRegistered, direction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if otherID, ok := other.ids[typ]; ok {
		return fmt.Errorf("%w: %s is already registered in the other table as %s",
			coreErrors.ErrAmbiguousMessageType, TypeName(typ), otherID)
	}

	if existing, ok := into.ids[typ]; ok {
		if existing == id {
			return nil
		}

		return fmt.Errorf("%w: %s %s is already registered as %s",
			coreErrors.ErrAmbiguousMessageType, direction, TypeName(typ), existing)
	}

	if owner, ok := into.types[id]; ok {
		return fmt.Errorf("%w: %s id %s is already used by %s",
			coreErrors.ErrAmbiguousMessageType, direction, id, TypeName(owner))
	}

	into.ids[typ] = id
	into.types[id] = typ

	return nil
}

// RequestIDFor returns the request id registered for typ.
func (r *Registry) RequestIDFor(typ reflect.Type) (ID, error) {
	return r.idFor(typ, &r.requests, "request")
}

// ResponseIDFor returns the response id registered for typ.
func (r *Registry) ResponseIDFor(typ reflect.Type) (ID, error) {
	return r.idFor(typ, &r.responses, "response")
}

// RequestTypeFor returns the payload type registered under request id.
func (r *Registry) RequestTypeFor(id ID) (reflect.Type, error) {
	return r.typeFor(id, &r.requests, "request")
}

// ResponseTypeFor returns the payload type registered under response id.
func (r *Registry) ResponseTypeFor(id ID) (reflect.Type, error) {
	return r.typeFor(id, &r.responses, "response")
}

func (r *Registry) idFor(typ reflect.Type, from *table, direction string) (ID, error) {
	r.mu.RLock()
	id, ok := from.ids[typ]
	r.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: no %s id for %s",
			coreErrors.ErrMessageTypeNotRegistered, direction, TypeName(typ))
	}

	return id, nil
}

func (r *Registry) typeFor(id ID, from *table, direction string) (reflect.Type, error) {
	r.mu.RLock()
	typ, ok := from.types[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no %s type for id %s",
			coreErrors.ErrMessageTypeNotRegistered, direction, id)
	}

	return typ, nil
}

// TypeName returns the package-qualified name of typ with any pointer
// indirection removed, e.g. "example.com/game/proto.Ping".
func TypeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}

	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.PkgPath() == "" {
		return typ.String()
	}

	return typ.PkgPath() + "." + typ.Name()
}
