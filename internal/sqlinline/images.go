package sqlinline

const QSelectImageVariants = `--sql b362a07b-c6e5-48dc-b5fb-aeebf7e5b284
select remix_variants
from images
where id = $1::uuid;
`

const QUpdateImageVariants = `--sql 5c924b39-bffe-480d-b982-60879e3f4d58
update images
set remix_variants = $2::jsonb,
    updated_at = now()
where id = $1::uuid;
`
