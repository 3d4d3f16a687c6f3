package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServerTXT creates TXT records for a server announcement.
func EncodeServerTXT(info *ServerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyScheme] = info.Scheme

	if info.Path != "" {
		txt[TXTKeyPath] = info.Path
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if info.Codec != "" {
		txt[TXTKeyCodec] = info.Codec
	}
	if info.Version > 0 {
		txt[TXTKeyVersion] = strconv.Itoa(info.Version)
	}
	return txt
}

// DecodeServerTXT parses TXT records of a server announcement.
func DecodeServerTXT(txt TXTRecordMap) (*ServerInfo, error) {
	scheme, ok := txt[TXTKeyScheme]
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyScheme)
	}
	switch scheme {
	case "ws", "wss", "nats", "tls":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTXTRecord, scheme)
	}

	info := &ServerInfo{
		Scheme: scheme,
		Path:   txt[TXTKeyPath],
		Name:   txt[TXTKeyName],
		Codec:  txt[TXTKeyCodec],
	}
	if info.Path != "" && !strings.HasPrefix(info.Path, "/") {
		info.Path = "/" + info.Path
	}

	if v, ok := txt[TXTKeyVersion]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: version %q", ErrInvalidTXTRecord, v)
		}
		info.Version = n
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
