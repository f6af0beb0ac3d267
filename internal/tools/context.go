package tools

import "go.mongodb.org/mongo-driver/bson/primitive"

// CallContext is the identity of the active call, captured at call
// start. It is a value type; tools never mutate it.
type CallContext struct {
	TenantID        string
	CallID          primitive.ObjectID
	CallerPhone     string
	TelephonyCallID string
}

// WithTelephonyCallID returns a copy with the discovered telephony leg
// id attached. The leg id is the only field learned after call start.
func (c CallContext) WithTelephonyCallID(id string) CallContext {
	c.TelephonyCallID = id
	return c
}
