package embedded

const colPrefix = "col/"

func metaKey(collection string) []byte {
	return []byte(colPrefix + collection + "/meta")
}

func docPrefix(collection string) []byte {
	return []byte(colPrefix + collection + "/doc/")
}

func docKey(collection, id string) []byte {
	return append(docPrefix(collection), id...)
}
