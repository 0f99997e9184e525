package retention

import "strings"

// EntityName returns the short name of an entity path. Warehouse paths are
// "dataset.table" or "project.dataset.table" and object-store paths are
// "bucket/name".
func EntityName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dataset returns the qualifier of a warehouse path, everything before the
// table name, or "" when the path is unqualified.
func Dataset(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i]
	}
	return ""
}

// Qualify joins a dataset and a table name.
func Qualify(dataset, name string) string {
	if dataset == "" {
		return name
	}
	return dataset + "." + name
}

// ObjectToTable maps an object-store folder "bucket/name" to the warehouse
// table "nativeDataset.name" holding the same entity.
func ObjectToTable(objectPath, nativeDataset string) string {
	return Qualify(nativeDataset, EntityName(objectPath))
}

// TableToObject maps a warehouse path to its folder in the given bucket.
func TableToObject(tablePath, bucket string) string {
	return bucket + "/" + EntityName(tablePath)
}

// IsCompositeKey reports whether a join column token names more than one
// column.
func IsCompositeKey(columns string) bool {
	return strings.Contains(columns, ",")
}
