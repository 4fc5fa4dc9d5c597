package parse

// rocOffset is the difference between the common-era and ROC calendars.
const rocOffset = 1911

func ADToROC(year int) int {
	return year - rocOffset
}

func ROCToAD(year int) int {
	return year + rocOffset
}
