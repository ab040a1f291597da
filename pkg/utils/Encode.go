package utils

import "encoding/json"
import "fmt"


//=========================================== Encode/Decode JSON Utils


/*
	encode a struct of type T to a string (json stringify)
*/

func EncodeStructToString [T any](data T) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil { return GetZero[string](), err }

	return string(encoded), nil
}

/*
	encode a struct of type T to a byte array
*/

func EncodeStructToBytes [T any](data T) ([]byte, error) {
	encoded, err := json.Marshal(data)
	if err != nil { return nil, err }

	return encoded, nil
}

/*
	decode a string to a struct of type T
*/

func DecodeStringToStruct [T any](encoded string) (*T, error) {
	data := new(T)
	err := json.Unmarshal([]byte(encoded), data)
	if err != nil { return nil, err }

	return data, nil
}

/*
	decode a byte array to a struct of type T
*/

func DecodeBytesToStruct [T any](encoded []byte) (*T, error) {
	data := new(T)
	err := json.Unmarshal(encoded, data)
	if err != nil { return nil, err }

	return data, nil
}

/*
	prefix a numeric port with a colon so it can be appended to a host
*/

func NormalizePort(port int) string {
	return fmt.Sprintf(":%d", port)
}
