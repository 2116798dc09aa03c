package replcoordinator

import (
	"github.com/juju/mgo/v3/bson"
)

// EncodeHeartbeatRequest and DecodeHeartbeatRequest give
// HeartbeatRequest/HeartbeatResponse a concrete wire encoding using BSON,
// the document format spec §6's external interfaces are described against
// (heartbeat and position-update payloads travel as BSON documents on a
// real deployment, the same as the config document itself).
func EncodeHeartbeatRequest(req HeartbeatRequest) ([]byte, error) {
	return bson.Marshal(&req)
}

// DecodeHeartbeatRequest reverses EncodeHeartbeatRequest.
func DecodeHeartbeatRequest(data []byte) (HeartbeatRequest, error) {
	var req HeartbeatRequest
	err := bson.Unmarshal(data, &req)
	return req, err
}

// EncodeHeartbeatResponse and DecodeHeartbeatResponse do the same for the
// reply side.
func EncodeHeartbeatResponse(resp HeartbeatResponse) ([]byte, error) {
	return bson.Marshal(&resp)
}

// DecodeHeartbeatResponse reverses EncodeHeartbeatResponse.
func DecodeHeartbeatResponse(data []byte) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := bson.Unmarshal(data, &resp)
	return resp, err
}
