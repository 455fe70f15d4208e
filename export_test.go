package sharrock

// Test-only exports for internal functions.
var (
	SplitExt            = splitExt
	GenerateOperationID = generateOperationID
	ErrorResponseSchema = errorResponseSchema
	ErrorSchemaName     = errorSchemaName
	ProblemFor          = problemFor
	WriteErrorResponse  = writeErrorResponse
)

// Negotiate picks among ss the way a descriptor does for requests without
// an extension.
func Negotiate(accept string, ss ...Serializer) Serializer {
	return newSerializerSet(ss...).negotiate(accept)
}
