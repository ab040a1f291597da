package memberlistrpc

import "encoding/json"

import "google.golang.org/grpc/encoding"


//=========================================== Member List RPC Codec


/*
	no protoc generated message types exist for the membership service, so
	rpcs are exchanged as json, the same encoding used for journal records

	the codec registers under the "json" content subtype; clients select it
	per call with grpc.CallContentSubtype(JsonCodecName)
*/

const JsonCodecName = "json"

type JsonCodec struct{}

func (JsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JsonCodec) Name() string {
	return JsonCodecName
}

func init() {
	encoding.RegisterCodec(JsonCodec{})
}
