package journal

import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== Journal


/*
	append a typed record to the consensus log, invalidating any superseded
	entries in the same call
*/

func AppendRecord [T any](log ConsensusLog, record T, invalidates []EntryId) (EntryId, error) {
	encoded, encErr := utils.EncodeStructToBytes[T](record)
	if encErr != nil { return 0, encErr }

	return log.Append(encoded, invalidates)
}

/*
	read one live entry back as a typed record
*/

func ReadRecord [T any](log ConsensusLog, entryId EntryId) (*T, error) {
	data, readErr := log.Read(entryId)
	if readErr != nil { return nil, readErr }

	return utils.DecodeBytesToStruct[T](data)
}

/*
	peek at the EntryType tag of a raw journal payload so replay can dispatch
	to the right recover operation
*/

func EntryTypeOf(data []byte) (string, error) {
	tagged, decErr := utils.DecodeBytesToStruct[TaggedRecord](data)
	if decErr != nil { return "", decErr }

	return tagged.EntryType, nil
}
