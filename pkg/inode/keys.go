package inode

import "fmt"

// Key layout per spec.md §6: inode/by-path/{zone}/{path} -> inode_id,
// inode/{zone}/{inode_id} -> record.

func pathKey(zone, path string) []byte {
	return []byte(fmt.Sprintf("inode/by-path/%s%s", zone, path))
}

func recordKey(zone string, id uint64) []byte {
	return []byte(fmt.Sprintf("inode/%s/%d", zone, id))
}

func recordKeyPrefix(zone string) []byte {
	return []byte(fmt.Sprintf("inode/%s/", zone))
}

func idCounterKey(zone string) []byte {
	return []byte(fmt.Sprintf("inode/id-counter/%s", zone))
}
