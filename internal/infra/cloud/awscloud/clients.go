package awscloud

import (
	"context"

	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	stssvc "github.com/aws/aws-sdk-go-v2/service/sts"
)

// s3API is the narrow S3 interface used to lock buckets down.
type s3API interface {
	PutPublicAccessBlock(ctx context.Context, params *s3svc.PutPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.PutPublicAccessBlockOutput, error)
}

// ec2API revokes security group ingress.
type ec2API interface {
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2svc.RevokeSecurityGroupIngressInput, optFns ...func(*ec2svc.Options)) (*ec2svc.RevokeSecurityGroupIngressOutput, error)
}

// iamAPI rewrites role trust policies.
type iamAPI interface {
	UpdateAssumeRolePolicy(ctx context.Context, params *iamsvc.UpdateAssumeRolePolicyInput, optFns ...func(*iamsvc.Options)) (*iamsvc.UpdateAssumeRolePolicyOutput, error)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *stssvc.GetCallerIdentityInput, optFns ...func(*stssvc.Options)) (*stssvc.GetCallerIdentityOutput, error)
}

// Clients bundles the SDK clients the provider calls. Tests pass fakes.
type Clients struct {
	S3  s3API
	EC2 ec2API
	IAM iamAPI
	STS stsAPI
}
