package service

import "strconv"

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func stringToUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
